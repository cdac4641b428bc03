package uploader

import (
	"strings"
	"testing"
	"time"
)

const inspectionXML = `<Report>
  <GlobalInformation>
    <Program><InspectionPlanName>P1</InspectionPlanName></Program>
    <Inspection>
      <Date><End>20240101</End></Date>
      <Time><End>100000</End></Time>
    </Inspection>
  </GlobalInformation>
  <PCBInformation>
    <SinglePCB><Barcode>SN002</Barcode><Result>PASS</Result></SinglePCB>
    <SinglePCB><Barcode>SN001</Barcode><Result>FAIL</Result></SinglePCB>
  </PCBInformation>
  <ComponentInformation>
    <Window><WinID>R10-1</WinID><PCBNumber>2</PCBNumber><Analysis><Result>5</Result></Analysis></Window>
    <Window><WinID>R10-2</WinID><PCBNumber>2</PCBNumber><Analysis><Result>3</Result></Analysis></Window>
    <Window><WinID>C5-1</WinID><PCBNumber>2</PCBNumber><Analysis><Result>0</Result></Analysis></Window>
  </ComponentInformation>
</Report>`

const repairXML = `<Report>
  <GlobalInformation>
    <Program><InspectionPlanName>P1</InspectionPlanName></Program>
    <Inspection>
      <Date><End>20240101</End></Date>
      <Time><End>100000</End></Time>
    </Inspection>
    <Repair>
      <OperatorName>kovacs</OperatorName>
      <Date><End>20240101</End></Date>
      <Time><End>103000</End></Time>
    </Repair>
  </GlobalInformation>
  <PCBInformation>
    <SinglePCB><Barcode>SN001</Barcode><Result>FAIL</Result></SinglePCB>
    <SinglePCB><Barcode>SN002</Barcode><Result>PASS</Result></SinglePCB>
  </PCBInformation>
  <ComponentInformation>
    <Window><WinID>R10-1</WinID><PCBNumber>0</PCBNumber><Result><ErrorDescription>Hibas forrasztas</ErrorDescription></Result></Window>
    <Window><WinID>C5-2</WinID><PCBNumber>0</PCBNumber><Result><ErrorDescription>Pszeudohiba</ErrorDescription></Result></Window>
  </ComponentInformation>
</Report>`

func TestParsePanel_InspectionReport(t *testing.T) {
	p, err := ParsePanel([]byte(inspectionXML), "L1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Program != "P1" {
		t.Fatalf("expected program P1, got %q", p.Program)
	}
	if p.Station != "L1_AOI_AXI" {
		t.Fatalf("expected inspection station suffix, got %q", p.Station)
	}
	if p.Operator != "" {
		t.Fatalf("expected no operator on inspection report, got %q", p.Operator)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	if !p.InspectionTime.Equal(want) {
		t.Fatalf("expected inspection time %v, got %v", want, p.InspectionTime)
	}

	// Boards are sorted by serial and renumbered after window assignment.
	if len(p.Boards) != 2 {
		t.Fatalf("expected 2 boards, got %d", len(p.Boards))
	}
	if p.Boards[0].Serial != "SN001" || p.Boards[0].Number != 1 {
		t.Fatalf("unexpected first board: %+v", p.Boards[0])
	}
	if p.Boards[1].Serial != "SN002" || p.Boards[1].Number != 2 {
		t.Fatalf("unexpected second board: %+v", p.Boards[1])
	}

	// Windows referenced board 2 in machine order, which is SN001. The two
	// R10 windows collapse to one ID (pass suffix trimmed), the Result=0
	// window is skipped.
	failed := p.Boards[0].Failed
	if len(failed) != 1 || failed[0] != "R10" {
		t.Fatalf("expected failed=[R10], got %v", failed)
	}
	if len(p.Boards[1].Failed) != 0 {
		t.Fatalf("expected no failed windows on passing board, got %v", p.Boards[1].Failed)
	}
}

func TestParsePanel_RepairReport(t *testing.T) {
	p, err := ParsePanel([]byte(repairXML), "L1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Station != "L1_HARAN" {
		t.Fatalf("expected repair station suffix, got %q", p.Station)
	}
	if p.Operator != "KOVACS" {
		t.Fatalf("expected uppercased operator, got %q", p.Operator)
	}
	want := time.Date(2024, 1, 1, 10, 30, 0, 0, time.Local)
	if !p.RepairTime.Equal(want) {
		t.Fatalf("expected repair time %v, got %v", want, p.RepairTime)
	}

	// Repair windows index boards from zero: board 0 is SN001.
	var sn001 Board
	for _, b := range p.Boards {
		if b.Serial == "SN001" {
			sn001 = b
		}
	}
	if len(sn001.Failed) != 1 || sn001.Failed[0] != "R10" {
		t.Fatalf("expected failed=[R10], got %v", sn001.Failed)
	}
	if len(sn001.Pseudo) != 1 || sn001.Pseudo[0] != "C5" {
		t.Fatalf("expected pseudo=[C5], got %v", sn001.Pseudo)
	}
}

func TestParsePanel_MandatoryFieldErrors(t *testing.T) {
	cases := []struct {
		name string
		xml  string
	}{
		{"no global information", `<Report><PCBInformation/></Report>`},
		{"empty program", strings.Replace(inspectionXML, "P1", "", 1)},
		{"missing inspection time", strings.Replace(inspectionXML, "<Time><End>100000</End></Time>", "", 1)},
		{"missing barcode", strings.Replace(inspectionXML, "SN001", "", 1)},
		{"window without pcb number", strings.Replace(inspectionXML, "<PCBNumber>2</PCBNumber><Analysis><Result>5</Result></Analysis>", "<Analysis><Result>5</Result></Analysis>", 1)},
		{"window pcb number zero", strings.Replace(inspectionXML, "<PCBNumber>2</PCBNumber><Analysis><Result>5</Result></Analysis>", "<PCBNumber>0</PCBNumber><Analysis><Result>5</Result></Analysis>", 1)},
		{"window pcb number out of range", strings.Replace(inspectionXML, "<PCBNumber>2</PCBNumber><Analysis><Result>5</Result></Analysis>", "<PCBNumber>9</PCBNumber><Analysis><Result>5</Result></Analysis>", 1)},
		{"not xml at all", "definitely not xml"},
	}
	for _, tc := range cases {
		if _, err := ParsePanel([]byte(tc.xml), "L1"); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestPanelRecords_InspectionUsesInspectionTime(t *testing.T) {
	p, err := ParsePanel([]byte(inspectionXML), "L1")
	if err != nil {
		t.Fatal(err)
	}
	recs := p.Records()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	for _, r := range recs {
		if !r.DateTime.Equal(want) {
			t.Fatalf("expected inspection time on record, got %v", r.DateTime)
		}
		if r.Operator != nil {
			t.Fatalf("expected NULL operator, got %q", *r.Operator)
		}
		if r.Program != "P1" || r.Station != "L1_AOI_AXI" {
			t.Fatalf("unexpected record header: %+v", r)
		}
	}
	if recs[0].SerialNumber != "SN001" || recs[0].Result != "FAIL" {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if recs[0].Failed == nil || *recs[0].Failed != "R10" {
		t.Fatalf("expected failed list on SN001, got %v", recs[0].Failed)
	}
	if recs[1].Failed != nil {
		t.Fatalf("expected NULL failed list on passing board, got %q", *recs[1].Failed)
	}
}

func TestPanelRecords_RepairUsesRepairTimeAndOperator(t *testing.T) {
	p, err := ParsePanel([]byte(repairXML), "L1")
	if err != nil {
		t.Fatal(err)
	}
	recs := p.Records()
	want := time.Date(2024, 1, 1, 10, 30, 0, 0, time.Local)
	for _, r := range recs {
		if !r.DateTime.Equal(want) {
			t.Fatalf("expected repair time on record, got %v", r.DateTime)
		}
		if r.Operator == nil || *r.Operator != "KOVACS" {
			t.Fatalf("expected operator KOVACS, got %v", r.Operator)
		}
	}
	if recs[0].PseudoError == nil || *recs[0].PseudoError != "C5" {
		t.Fatalf("expected pseudo list on SN001, got %v", recs[0].PseudoError)
	}
}

func TestTrimWindowID(t *testing.T) {
	cases := map[string]string{
		"R10-1": "R10",
		"R10":   "R10",
		"A-B-3": "A-B",
	}
	for in, want := range cases {
		if got := trimWindowID(in); got != want {
			t.Fatalf("trimWindowID(%q) = %q, want %q", in, got, want)
		}
	}
}
