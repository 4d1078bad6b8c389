package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/conflictmap/internal/model"
)

var testPresidents = []model.President{
	{Name: "George W. Bush", Start: "2001-01-20", End: "2009-01-20", Party: model.PartyRepublican},
	{Name: "Barack Obama", Start: "2009-01-20", End: "2017-01-20", Party: model.PartyDemocratic},
}

var testSpan = Span{MinYear: 1900, MaxYear: 2025}

func TestReduce_SelectPresident(t *testing.T) {
	s := NewState(testSpan)

	next := Reduce(s, SelectPresident{Term: "George W. Bush"}, testPresidents)

	assert.Equal(t, "George W. Bush@2001-01-20", next.Selected)
	assert.Equal(t, "George W. Bush", next.SelectedName())
	assert.Equal(t, 2001, next.StartYear)
	assert.Equal(t, 2009, next.EndYear)
	assert.Equal(t, "2001-01-20", next.Range.Start.Format(model.DateLayout))
	assert.Equal(t, "2009-01-20", next.Range.End.Format(model.DateLayout))

	// input state untouched
	assert.False(t, s.HasSelection())
	assert.Equal(t, 1900, s.StartYear)
}

func TestReduce_ReselectClears(t *testing.T) {
	s := Reduce(NewState(testSpan), SelectPresident{Term: "George W. Bush"}, testPresidents)
	next := Reduce(s, SelectPresident{Term: "George W. Bush"}, testPresidents)

	assert.False(t, next.HasSelection())
	assert.Equal(t, 1900, next.StartYear)
	assert.Equal(t, 2025, next.EndYear)
	assert.Equal(t, NewState(testSpan), next)
}

func TestReduce_SwitchPresident(t *testing.T) {
	s := Reduce(NewState(testSpan), SelectPresident{Term: "George W. Bush"}, testPresidents)
	next := Reduce(s, SelectPresident{Term: "Barack Obama"}, testPresidents)

	assert.Equal(t, "Barack Obama@2009-01-20", next.Selected)
	assert.Equal(t, 2009, next.StartYear)
	assert.Equal(t, 2017, next.EndYear)
}

func TestReduce_NonConsecutiveTerms(t *testing.T) {
	presidents := []model.President{
		{Name: "Grover Cleveland", Start: "1885-03-04", End: "1889-03-04", Party: model.PartyDemocratic},
		{Name: "Benjamin Harrison", Start: "1889-03-04", End: "1893-03-04", Party: model.PartyRepublican},
		{Name: "Grover Cleveland", Start: "1893-03-04", End: "1897-03-04", Party: model.PartyDemocratic},
	}
	span := Span{MinYear: 1880, MaxYear: 1900}
	first, second := presidents[0].TermID(), presidents[2].TermID()
	require.NotEqual(t, first, second)

	s := Reduce(NewState(span), SelectPresident{Term: first}, presidents)
	assert.Equal(t, first, s.Selected)
	assert.Equal(t, 1885, s.StartYear)
	assert.Equal(t, 1889, s.EndYear)

	// the other term of the same person switches instead of clearing
	next := Reduce(s, SelectPresident{Term: second}, presidents)
	assert.Equal(t, second, next.Selected)
	assert.Equal(t, 1893, next.StartYear)
	assert.Equal(t, 1897, next.EndYear)
	assert.Equal(t, "1893-03-04", next.Range.Start.Format(model.DateLayout))

	cleared := Reduce(next, SelectPresident{Term: second}, presidents)
	assert.False(t, cleared.HasSelection())

	// a bare name is ambiguous across two terms
	assert.Equal(t, s, Reduce(s, SelectPresident{Term: "Grover Cleveland"}, presidents))
}

func TestReduce_UnknownPresidentIsNoop(t *testing.T) {
	s := Reduce(NewState(testSpan), SelectPresident{Term: "George W. Bush"}, testPresidents)
	next := Reduce(s, SelectPresident{Term: "Nobody"}, testPresidents)
	assert.Equal(t, s, next)
}

func TestReduce_UserDragClearsSelection(t *testing.T) {
	s := Reduce(NewState(testSpan), SelectPresident{Term: "George W. Bush"}, testPresidents)
	next := Reduce(s, RangeChanged{StartYear: 2003, EndYear: 2005, Origin: OriginUser}, testPresidents)

	assert.False(t, next.HasSelection())
	assert.Equal(t, 2003, next.StartYear)
	assert.Equal(t, 2005, next.EndYear)
	assert.Equal(t, "2003-01-01", next.Range.Start.Format(model.DateLayout))
	assert.Equal(t, "2005-12-31", next.Range.End.Format(model.DateLayout))
}

func TestReduce_ProgrammaticKeepsSelection(t *testing.T) {
	s := Reduce(NewState(testSpan), SelectPresident{Term: "George W. Bush"}, testPresidents)

	echo := Reduce(s, RangeChanged{StartYear: 2001, EndYear: 2009, Origin: OriginProgrammatic}, testPresidents)
	assert.Equal(t, "George W. Bush@2001-01-20", echo.Selected)
	assert.Equal(t, s.Range, echo.Range, "echo of the selected term keeps exact term dates")

	moved := Reduce(s, RangeChanged{StartYear: 1990, EndYear: 1995, Origin: OriginProgrammatic}, testPresidents)
	assert.Equal(t, "George W. Bush@2001-01-20", moved.Selected)
	assert.Equal(t, 1990, moved.Range.StartYear())
}

func TestReduce_ClampsToSpan(t *testing.T) {
	next := Reduce(NewState(testSpan), RangeChanged{StartYear: 2030, EndYear: 1800, Origin: OriginUser}, testPresidents)
	assert.Equal(t, 1900, next.StartYear)
	assert.Equal(t, 2025, next.EndYear)
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction([]byte(`{"kind":"select_president","name":"Barack Obama"}`))
	require.NoError(t, err)
	assert.Equal(t, SelectPresident{Term: "Barack Obama"}, a, "name is accepted in place of term")

	a, err = DecodeAction([]byte(`{"kind":"select_president","term":"Barack Obama@2009-01-20"}`))
	require.NoError(t, err)
	assert.Equal(t, SelectPresident{Term: "Barack Obama@2009-01-20"}, a)

	a, err = DecodeAction([]byte(`{"kind":"range_changed","startYear":1950,"endYear":1960}`))
	require.NoError(t, err)
	assert.Equal(t, RangeChanged{StartYear: 1950, EndYear: 1960, Origin: OriginUser}, a)

	_, err = DecodeAction([]byte(`{"kind":"range_changed","origin":"robot"}`))
	assert.Error(t, err)

	_, err = DecodeAction([]byte(`{"kind":"teleport"}`))
	assert.Error(t, err)

	_, err = DecodeAction([]byte(`not json`))
	assert.Error(t, err)
}

func TestDataset_Snapshot(t *testing.T) {
	conflicts := []model.Conflict{
		{ID: "iraq", Type: model.TypeDirectWar, Countries: []string{"IQ"}, StartDate: "2003-03-20", EndDate: "2011-12-18"},
		{ID: "afghanistan", Type: model.TypeDirectWar, Countries: []string{"AF"}, StartDate: "2001-10-07", EndDate: "2021-08-30"},
		{ID: "korea", Type: model.TypeDirectWar, Countries: []string{"KR", "KP"}, StartDate: "1950-06-25", EndDate: "1953-07-27"},
	}
	ds := NewDataset(conflicts, testPresidents)

	s := Reduce(NewState(testSpan), SelectPresident{Term: "George W. Bush"}, testPresidents)
	snap := ds.Snapshot(s)

	require.Len(t, snap.Conflicts, 2)
	assert.Equal(t, "afghanistan", snap.Conflicts[0].ID, "sorted by start date")
	assert.Equal(t, "iraq", snap.Conflicts[1].ID)
	assert.Len(t, snap.Presidents, 2, "Obama's term begins on Bush's last day")
	assert.Equal(t, []string{"AF", "IQ", "KP", "KR"}, snap.Known)
	assert.Equal(t, "active", string(snap.Highlight("IQ")))
	assert.Equal(t, "dimmed", string(snap.Highlight("KR")))
	assert.Equal(t, "untouched", string(snap.Highlight("FR")))

	c, ok := ds.FindConflict("korea")
	require.True(t, ok)
	assert.Equal(t, "korea", c.ID)
	_, ok = ds.FindConflict("missing")
	assert.False(t, ok)
}
