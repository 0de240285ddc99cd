package plotcsv

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"landledger/pkg/domain"
)

func TestReadChartWithHeader(t *testing.T) {
	in := "Survey No.,Classification,Owner,Status,Extent\n" +
		"112/3,wet,Ramaswamy,Advance  Paid,1.25\n" +
		",,,,\n" +
		"45,,Lakshmi,waiting,0.50\n"
	plots, err := ReadChart(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(plots) != 2 {
		t.Fatalf("expected 2 plots, got %+v", plots)
	}
	if plots[0].SurveyNumber != "112/3" || plots[0].Status != "advance paid" || !plots[0].KnownStatus {
		t.Fatalf("unexpected first plot %+v", plots[0])
	}
	if plots[1].KnownStatus || plots[1].Status != "waiting" {
		t.Fatalf("unknown status should be kept but flagged: %+v", plots[1])
	}
}

func TestReadChartFreeformCells(t *testing.T) {
	in := "112/3 wet Ramaswamy Naidu agreement signed 1.25\n" +
		"\"45 Kumar pending 0.50\"\n"
	plots, err := ReadChart(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(plots) != 2 || plots[0].Owner != "Ramaswamy Naidu" || plots[1].Status != "pending" {
		t.Fatalf("unexpected plots %+v", plots)
	}
}

func TestReadChartHeaderWithFreeformRow(t *testing.T) {
	in := "survey_number,plot\n,7 dry Muthu registered 2\n"
	plots, err := ReadChart(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(plots) != 1 || plots[0].SurveyNumber != "7" || plots[0].Status != "registered" {
		t.Fatalf("unexpected plots %+v", plots)
	}
}

func TestReadChartMalformedCSV(t *testing.T) {
	if _, err := ReadChart(strings.NewReader("survey,status\n\"unterminated,x\n")); err == nil {
		t.Fatalf("expected csv error")
	}
}

func TestWriteChartRoundTrip(t *testing.T) {
	plots := []Plot{
		{SurveyNumber: "112/3", Classification: "wet", Owner: "Ramaswamy, Naidu", Status: "advance paid", Extent: "1.25", KnownStatus: true},
		{SurveyNumber: "45", Status: "pending", KnownStatus: true},
	}
	var buf bytes.Buffer
	if err := WriteChart(&buf, plots); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "survey_number,classification,owner,status,extent\n") {
		t.Fatalf("unexpected header %q", buf.String())
	}
	back, err := ReadChart(&buf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(back) != 2 || back[0] != plots[0] || back[1] != plots[1] {
		t.Fatalf("round trip mismatch %+v", back)
	}
}

const lineageCSV = `id,parent_id,name,relation,gender,age_group,marital,life_status,survey_number,acres,cents,classification
c1,h1,Ravi,son,M,adult,married,alive,112/3,0,50,wet
h1,,Subbiah,head,male,senior,widower,dead,112/3,1,25,wet
h1,,,,,,,,45,2,0,dry
c2,c1,Meena,granddaughter,f,minor,single,alive,,,,
`

func TestReadLineageOrdersParentsFirst(t *testing.T) {
	entries, err := ReadLineage(strings.NewReader(lineageCSV))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	refs := []string{entries[0].Ref, entries[1].Ref, entries[2].Ref}
	if refs[0] != "h1" || refs[1] != "c1" || refs[2] != "c2" {
		t.Fatalf("unexpected order %v", refs)
	}
	head := entries[0].Person
	if head.Name != "Subbiah" || head.LifeStatus != domain.LifeDeceased || head.MaritalStatus != domain.MaritalWidowed {
		t.Fatalf("unexpected head %+v", head)
	}
	if len(head.LandRecords) != 2 || head.LandRecords[1].SurveyNumber != "45" || head.LandRecords[1].Classification != domain.LandDry {
		t.Fatalf("repeated id rows should add land records: %+v", head.LandRecords)
	}
	if entries[1].Person.Gender != domain.GenderMale || entries[2].Person.Gender != domain.GenderFemale {
		t.Fatalf("gender aliases not applied")
	}
	if len(entries[2].Person.LandRecords) != 0 {
		t.Fatalf("row without survey number should add no land record")
	}
}

func TestReadLineageErrors(t *testing.T) {
	cases := map[string]string{
		"missing column":   "id,parent_id\n1,\n",
		"missing name":     "id,name\n1,\n",
		"unknown parent":   "id,parent_id,name\n1,9,A\n",
		"own parent":       "id,parent_id,name\n1,1,A\n",
		"cycle":            "id,parent_id,name\n1,2,A\n2,1,B\n",
		"bad gender":       "id,name,gender\n1,A,x\n",
		"bad class":        "id,name,survey_number,classification\n1,A,5,swamp\n",
		"bad extent":       "id,name,survey_number,acres\n1,A,5,lots\n",
		"empty":            "",
		"missing id value": "id,name\n,A\n",
	}
	for name, in := range cases {
		if _, err := ReadLineage(strings.NewReader(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	_, err := ReadLineage(strings.NewReader("id,parent_id,name\n1,,A\n2,7,B\n"))
	var rowErr RowError
	if !errors.As(err, &rowErr) || rowErr.Line != 3 {
		t.Fatalf("expected row error on line 3, got %v", err)
	}
}
