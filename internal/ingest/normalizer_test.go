package ingest

import (
	"testing"
	"time"

	"github.com/david/b2-radar/internal/models"
)

func TestNormalize_ParsesAndDerives(t *testing.T) {
	table := &Table{
		Header: []string{"ID", "Título", "Responsável", "Estado", "Estágio", "Valor", "Valor rec. fechamento", "Data de abertura", "Data fechamento", "Prob %", "Canal"},
		Rows: [][]string{
			{"1", "Negócio OC 45", " Ana ", "Ganha", "Fechamento", "R$ 2.000,00", "R$ 1.900,00", "01/01/2024 10:00:00", "03/01/2024 10:00:00", "100%", "Indicação"},
		},
	}

	opps, stats := Normalize(table, NormalizeOptions{Location: time.UTC})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	o := opps[0]

	if o.IdentifierValue() != "OC45" {
		t.Fatalf("expected OC45, got %q", o.IdentifierValue())
	}
	if o.Owner != "Ana" {
		t.Fatalf("expected trimmed owner, got %q", o.Owner)
	}
	if o.Value == nil || *o.Value != 2000 {
		t.Fatalf("expected value 2000, got %v", o.Value)
	}
	if o.CloseValueRec == nil || *o.CloseValueRec != 1900 {
		t.Fatalf("expected close value rec 1900, got %v", o.CloseValueRec)
	}
	if o.ValueRec != nil {
		t.Fatalf("expected nil for missing column, got %v", *o.ValueRec)
	}
	if o.Probability == nil || *o.Probability != 100 {
		t.Fatalf("expected probability 100, got %v", o.Probability)
	}
	if o.OpenYear != 2024 || o.OpenMonth != 1 || o.OpenHour != 10 || o.OpenWeekday != int(time.Monday) {
		t.Fatalf("unexpected open features: %d-%d h%d wd%d", o.OpenYear, o.OpenMonth, o.OpenHour, o.OpenWeekday)
	}
	if o.OpenPeriod != "2024-01" || o.ClosePeriod != "2024-01" {
		t.Fatalf("unexpected periods: %q %q", o.OpenPeriod, o.ClosePeriod)
	}
	if o.StageGroup != models.StageGroupClosing {
		t.Fatalf("expected closing, got %s", o.StageGroup)
	}
	if o.Extra["Canal"] != "Indicação" {
		t.Fatalf("expected unknown column kept in Extra, got %v", o.Extra)
	}
	if stats.RowsRead != 1 || stats.WithoutIdentifier != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestNormalize_HeaderLookupIsLenient(t *testing.T) {
	table := &Table{
		Header: []string{" título ", "VALOR", "data de abertura"},
		Rows:   [][]string{{"OC 9", "10,00", "02/01/2024"}},
	}
	opps, _ := Normalize(table, NormalizeOptions{Location: time.UTC})
	if len(opps) != 1 {
		t.Fatalf("expected 1 row, got %d", len(opps))
	}
	if opps[0].IdentifierValue() != "OC9" || opps[0].Value == nil || opps[0].OpenedAt == nil {
		t.Fatalf("lenient header lookup failed: %+v", opps[0])
	}
}

func TestNormalize_BadFieldsDegradeToNil(t *testing.T) {
	table := &Table{
		Header: []string{"Título", "Valor", "Data de abertura", "Data fechamento"},
		Rows:   [][]string{{"Sem código", "a combinar", "amanhã", ""}},
	}
	opps, stats := Normalize(table, NormalizeOptions{})
	if len(opps) != 1 {
		t.Fatalf("expected row retained, got %d", len(opps))
	}
	o := opps[0]
	if o.Value != nil || o.OpenedAt != nil || o.ClosedAt != nil || o.Identifier != nil {
		t.Fatalf("expected nil fields, got %+v", o)
	}
	for name, v := range map[string]int{
		"OpenYear": o.OpenYear, "OpenMonth": o.OpenMonth, "OpenHour": o.OpenHour,
		"OpenWeekday": o.OpenWeekday, "CloseYear": o.CloseYear, "CloseMonth": o.CloseMonth,
	} {
		if v != NoValue {
			t.Errorf("%s = %d, want %d", name, v, NoValue)
		}
	}
	if o.StageGroup != models.StageGroupNotInformed {
		t.Fatalf("expected not_informed, got %s", o.StageGroup)
	}
	if stats.WithoutIdentifier != 1 || stats.WithoutOpenDate != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestNormalize_DedupeAndBlankRows(t *testing.T) {
	table := &Table{
		Header: []string{"ID", "Título", "Estágio", "Data de abertura"},
		Rows: [][]string{
			{"1", "OC 1", "Proposta", "01/01/2024 10:00:00"},
			{"", "", "", ""},
			{"1", "OC 1", "Proposta (cópia)", "01/01/2024 10:00:00"},
			{"1", "OC 1", "Fechamento", "02/01/2024 10:00:00"},
			{"2", "OC 2", "Lead", "01/01/2024 10:00:00"},
		},
	}

	opps, stats := Normalize(table, NormalizeOptions{Location: time.UTC})
	if len(opps) != 3 {
		t.Fatalf("expected 3 rows after dedupe, got %d", len(opps))
	}
	if opps[0].Stage != "Proposta" {
		t.Fatalf("expected first occurrence kept, got %q", opps[0].Stage)
	}
	if opps[1].Row != 3 || opps[2].Row != 4 {
		t.Fatalf("expected original row indexes 3 and 4, got %d and %d", opps[1].Row, opps[2].Row)
	}
	if stats.Duplicates != 1 || stats.BlankRows != 1 || stats.RowsRead != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestNormalize_SanitizesMarkup(t *testing.T) {
	table := &Table{
		Header: []string{"Título", "Responsável", "Observação de fechamento"},
		Rows:   [][]string{{"<b>OC 3</b>", "<script>alert(1)</script>Ana", "Preço & prazo"}},
	}
	opps, _ := Normalize(table, NormalizeOptions{})
	o := opps[0]
	if o.Title != "OC 3" {
		t.Fatalf("expected tags stripped, got %q", o.Title)
	}
	if o.Owner != "Ana" {
		t.Fatalf("expected script removed, got %q", o.Owner)
	}
	if o.CloseNote != "Preço & prazo" {
		t.Fatalf("expected plain text untouched, got %q", o.CloseNote)
	}
}

func TestNormalize_ShortRowsAndNilTable(t *testing.T) {
	opps, _ := Normalize(nil, NormalizeOptions{})
	if opps == nil || len(opps) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", opps)
	}

	table := &Table{Header: []string{"Título", "Valor"}, Rows: [][]string{{"OC 5"}}}
	opps, _ = Normalize(table, NormalizeOptions{})
	if len(opps) != 1 || opps[0].Value != nil {
		t.Fatalf("expected short row tolerated, got %+v", opps)
	}
}
