package x12elig

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Scenario(t *testing.T) {
	outcome := NewParser(DelimiterTable{}).Parse(scenarioContent)
	require.True(t, outcome.OK(), outcome.Messages())
	assert.Equal(t, "270", outcome.TransactionType)
	assert.Len(t, outcome.Segments, 9)
	assert.Equal(t, DefaultDelimiters(), outcome.Delimiters)

	validation := NewEligibilityValidator(DelimiterTable{}).Validate(outcome.Segments)
	require.False(t, validation.OK())
	assert.True(t, validation.HasError(ErrMissingSegments))
	assert.Contains(t, validation.Err().Error(), "GS")
	assert.Nil(t, validation.Data)
}

func TestParser_Fixture(t *testing.T) {
	outcome := NewParser(DelimiterTable{}).Parse(x270Message(t), TransactionType("270"))
	require.NoError(t, outcome.Err())
	assert.Len(t, outcome.Segments, 17)

	isa := outcome.Segments[0]
	assert.Equal(t, "ISA", isa.ID())
	assert.Equal(t, 16, isa.DataElements())
	assert.Equal(t, ":", isa.Element(isaIndexComponentElementSeparator))
	assert.Equal(t, "", isa.Element(17))

	nm1 := outcome.Segments[10]
	assert.Equal(t, Segment{"NM1", "IL", "1", "SMITH", "ROBERT", "B", "", "", "MI", "11122333301"}, nm1)
}

func TestParser_ContentFailures(t *testing.T) {
	p := NewParser(DelimiterTable{})

	outcome := p.Parse("")
	assert.False(t, outcome.OK())
	assert.ErrorIs(t, outcome.Err(), ErrContentEmpty)
	assert.Empty(t, outcome.Segments)

	outcome = p.Parse("ST*270*0001~\x00")
	assert.ErrorIs(t, outcome.Err(), ErrUnsafeContent)
	assert.Empty(t, outcome.Segments)

	outcome = p.Parse(strings.Repeat("EQ*30~", 2000))
	assert.ErrorIs(t, outcome.Err(), ErrContentTooLarge)
}

func TestParser_SegmentFailure(t *testing.T) {
	outcome := NewParser(DelimiterTable{}).Parse(
		"ISA*00~ST*270*0001~NM1*IL*" + strings.Repeat("A", 110) + "~",
	)
	require.False(t, outcome.OK())
	assert.Empty(t, outcome.Segments)

	var segErr *SegmentError
	require.ErrorAs(t, outcome.Err(), &segErr)
	assert.Contains(t, segErr.Reason, "105")
}

func TestParser_Detection(t *testing.T) {
	p := NewParser(DelimiterTable{})

	outcome := p.Parse("ISA*00~GS*HS~BHT*0022~IEA*1~")
	assert.ErrorIs(t, outcome.Err(), ErrNoTransactionSet)
	assert.Contains(t, outcome.Messages(), "no ST segment found")

	outcome = p.Parse("ISA*00~ST*999*0001~SE*2*0001~")
	assert.ErrorIs(t, outcome.Err(), ErrUnsupportedTransaction)
	assert.Contains(t, outcome.Err().Error(), "999")

	// recognized, even without a registered validator
	outcome = p.Parse("ISA*00~ST*835*0001~SE*2*0001~")
	require.NoError(t, outcome.Err())
	assert.Equal(t, "835", outcome.TransactionType)

	outcome = p.Parse("ISA*00~ST*835*0001~SE*2*0001~", TransactionType("270"))
	assert.ErrorIs(t, outcome.Err(), ErrTransactionTypeMismatch)
	assert.Empty(t, outcome.Segments)

	limited := NewParser(DelimiterTable{}, WithSupportedTransactionTypes("270"))
	assert.Equal(t, []string{"270"}, limited.SupportedTransactionTypes())
	assert.ErrorIs(
		t,
		limited.Parse("ST*835*0001~").Err(),
		ErrUnsupportedTransaction,
	)
}

func TestParser_DelimiterSelection(t *testing.T) {
	alt := MustDelimiters("'", "+", ":")
	table := NewDelimiterTable(Delimiters{}, map[string]Delimiters{"270": alt})
	p := NewParser(table)
	altContent := "ISA+00'ST+270+0001'SE+2+0001'"

	// without an expected type, the default delimiters apply and the
	// whole document reads as one malformed segment
	assert.ErrorIs(t, p.Parse(altContent).Err(), ErrInvalidSegment)

	outcome := p.Parse(altContent, TransactionType("270"))
	require.NoError(t, outcome.Err())
	assert.Equal(t, alt, outcome.Delimiters)
	assert.Equal(t, Segment{"ST", "270", "0001"}, outcome.Segments[1])

	// explicit delimiters win over the override
	outcome = p.Parse("ST*270*0001~", TransactionType("270"), UsingDelimiters(DefaultDelimiters()))
	require.NoError(t, outcome.Err())
	assert.Equal(t, DefaultDelimiters(), outcome.Delimiters)
}

func TestParser_ConcurrentUse(t *testing.T) {
	alt := MustDelimiters("'", "+", ":")
	p := NewParser(NewDelimiterTable(Delimiters{}, map[string]Delimiters{"270": alt}))
	content := x270Message(t)
	altContent := "ISA+00'ST+270+0001'SE+2+0001'"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Parse(content).Err())
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Parse(altContent, TransactionType("270")).Err())
		}()
	}
	wg.Wait()
}

func TestSegment(t *testing.T) {
	seg := Segment{"NM1", "IL", "1", "DOE", "", ""}
	assert.Equal(t, "NM1", seg.ID())
	assert.Equal(t, 5, seg.DataElements())
	assert.Equal(t, "DOE", seg.Element(3))
	assert.Equal(t, "", seg.Element(-1))
	assert.Equal(t, "", seg.Element(99))
	assert.Equal(t, "NM1*IL*1*DOE", seg.Format(DefaultDelimiters()))

	var empty Segment
	assert.Equal(t, "", empty.ID())
	assert.Equal(t, 0, empty.DataElements())
}
