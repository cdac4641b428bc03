package uploader

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Panel is one parsed inspection-report XML: the shared header plus one
// entry per board on the panel.
type Panel struct {
	Program        string
	Station        string
	Operator       string
	InspectionTime time.Time
	RepairTime     time.Time
	Boards         []Board
}

type Board struct {
	Serial string
	Number int
	Result string
	Failed []string
	Pseudo []string
}

// The machines write end timestamps as separate date and time elements,
// e.g. <Date><End>20240101</End></Date> <Time><End>100000</End></Time>.
const panelTimeLayout = "20060102 150405"

// Repair-station operators mark false calls with this result text.
const pseudoErrorText = "Pszeudohiba"

type reportXML struct {
	GlobalInformation *struct {
		Program struct {
			InspectionPlanName string `xml:"InspectionPlanName"`
		} `xml:"Program"`
		Inspection stageTimeXML `xml:"Inspection"`
		Repair     *struct {
			OperatorName string `xml:"OperatorName"`
			stageTimeXML
		} `xml:"Repair"`
	} `xml:"GlobalInformation"`
	PCBInformation struct {
		SinglePCB []struct {
			Barcode string `xml:"Barcode"`
			Result  string `xml:"Result"`
		} `xml:"SinglePCB"`
	} `xml:"PCBInformation"`
	ComponentInformation struct {
		Windows []windowXML `xml:",any"`
	} `xml:"ComponentInformation"`
}

type stageTimeXML struct {
	Date struct {
		End string `xml:"End"`
	} `xml:"Date"`
	Time struct {
		End string `xml:"End"`
	} `xml:"Time"`
}

func (s stageTimeXML) endTime() time.Time {
	date := strings.TrimSpace(s.Date.End)
	clock := strings.TrimSpace(s.Time.End)
	if date == "" || clock == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(panelTimeLayout, date+" "+clock, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

type windowXML struct {
	WinID     string `xml:"WinID"`
	PCBNumber string `xml:"PCBNumber"`
	Result    struct {
		ErrorDescription string `xml:"ErrorDescription"`
	} `xml:"Result"`
	Analysis struct {
		Result string `xml:"Result"`
	} `xml:"Analysis"`
}

// ParsePanel parses a Vi-Tech inspection or repair report. line is the
// production line name the Station field derives from. Repair reports
// carry a <Repair> block with the operator name; for those the failed/pseudo
// classification comes from the operator's verdict. Inspection reports only
// carry failed windows, and only when at least one board did not pass.
func ParsePanel(content []byte, line string) (*Panel, error) {
	var doc reportXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, err
	}
	if doc.GlobalInformation == nil {
		return nil, fmt.Errorf("missing <GlobalInformation>")
	}
	gi := doc.GlobalInformation

	p := &Panel{
		Program:        strings.TrimSpace(gi.Program.InspectionPlanName),
		InspectionTime: gi.Inspection.endTime(),
	}

	repaired := gi.Repair != nil
	if repaired {
		p.Operator = strings.ToUpper(strings.TrimSpace(gi.Repair.OperatorName))
		p.RepairTime = gi.Repair.endTime()
	}

	// The machines occasionally emit garbage dates; anything before 2000
	// means the timestamp element was missing or unparseable.
	if p.Program == "" || p.InspectionTime.Year() < 2000 || (repaired && p.RepairTime.Year() < 2000) {
		return nil, fmt.Errorf("missing mandatory <GlobalInformation> elements")
	}

	failed := false
	for _, pcb := range doc.PCBInformation.SinglePCB {
		serial := strings.TrimSpace(pcb.Barcode)
		result := strings.TrimSpace(pcb.Result)
		if serial == "" || result == "" {
			return nil, fmt.Errorf("SinglePCB barcode or result missing")
		}
		if result != "PASS" {
			failed = true
		}
		p.Boards = append(p.Boards, Board{Serial: serial, Result: result})
	}

	if repaired {
		if err := applyRepairWindows(p.Boards, doc.ComponentInformation.Windows); err != nil {
			return nil, err
		}
	} else if failed {
		if err := applyInspectionWindows(p.Boards, doc.ComponentInformation.Windows); err != nil {
			return nil, err
		}
	}

	// Boards are reported in machine order; reporting expects them sorted
	// by serial with Board_NMBR renumbered to match.
	sort.Slice(p.Boards, func(i, j int) bool { return p.Boards[i].Serial < p.Boards[j].Serial })
	for i := range p.Boards {
		p.Boards[i].Number = i + 1
	}

	if repaired {
		p.Station = line + "_HARAN"
	} else {
		p.Station = line + "_AOI_AXI"
	}
	return p, nil
}

// applyRepairWindows classifies each repaired window as a real failure or a
// pseudo error based on the operator's verdict text. Repair reports index
// boards from zero; windows pointing outside the panel are dropped.
func applyRepairWindows(boards []Board, windows []windowXML) error {
	for _, w := range windows {
		winID := strings.TrimSpace(w.WinID)
		pcbNumber := strings.TrimSpace(w.PCBNumber)
		verdict := strings.TrimSpace(w.Result.ErrorDescription)
		if winID == "" || pcbNumber == "" || verdict == "" {
			return fmt.Errorf("repair window missing WinID/PCBNumber/Result")
		}
		idx, err := strconv.Atoi(pcbNumber)
		if err != nil {
			return fmt.Errorf("bad PCBNumber %q", pcbNumber)
		}
		if idx < 0 || idx >= len(boards) {
			continue
		}
		winID = trimWindowID(winID)
		if verdict == pseudoErrorText {
			boards[idx].Pseudo = appendUnique(boards[idx].Pseudo, winID)
		} else {
			boards[idx].Failed = appendUnique(boards[idx].Failed, winID)
		}
	}
	return nil
}

// applyInspectionWindows collects failed windows from an AOI/AXI report.
// Inspection reports number boards from one.
func applyInspectionWindows(boards []Board, windows []windowXML) error {
	for _, w := range windows {
		winID := strings.TrimSpace(w.WinID)
		pcbNumber := strings.TrimSpace(w.PCBNumber)
		result := strings.TrimSpace(w.Analysis.Result)
		if winID == "" || pcbNumber == "" || result == "" {
			return fmt.Errorf("inspection window missing WinID/PCBNumber/Result")
		}
		if result == "0" {
			continue
		}
		num, err := strconv.Atoi(pcbNumber)
		if err != nil {
			return fmt.Errorf("bad PCBNumber %q", pcbNumber)
		}
		if num == 0 {
			return fmt.Errorf("PCBNumber is 0, expected 1+")
		}
		if num < 0 || num > len(boards) {
			return fmt.Errorf("no board with number %d", num)
		}
		winID = trimWindowID(winID)
		boards[num-1].Failed = appendUnique(boards[num-1].Failed, winID)
	}
	return nil
}

// trimWindowID drops the repair-pass suffix after the last '-' so the same
// component window always maps to one identifier.
func trimWindowID(winID string) string {
	if i := strings.LastIndex(winID, "-"); i >= 0 {
		return winID[:i]
	}
	return winID
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// Records flattens the panel into one SMT_AOI_RESULTS row per board. The
// record timestamp is the repair end time when an operator touched the
// panel, otherwise the inspection end time. Absent operator and empty
// window lists are stored as NULL, not empty strings.
func (p *Panel) Records() []AoiResult {
	recs := make([]AoiResult, 0, len(p.Boards))
	ts := p.InspectionTime
	if p.Operator != "" {
		ts = p.RepairTime
	}
	for _, b := range p.Boards {
		rec := AoiResult{
			SerialNumber: b.Serial,
			DateTime:     ts,
			BoardNumber:  uint16(b.Number),
			Program:      p.Program,
			Station:      p.Station,
			Result:       b.Result,
		}
		if p.Operator != "" {
			op := p.Operator
			rec.Operator = &op
		}
		if len(b.Failed) > 0 {
			s := strings.Join(b.Failed, ", ")
			rec.Failed = &s
		}
		if len(b.Pseudo) > 0 {
			s := strings.Join(b.Pseudo, ", ")
			rec.PseudoError = &s
		}
		recs = append(recs, rec)
	}
	return recs
}
