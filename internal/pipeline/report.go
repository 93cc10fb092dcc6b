package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"chaincrack/pkg/contract"
)

// Report 为 report.json 的内容：逐序号结果与候选列表。
// 不含时间戳：同一输入的重跑产出逐字节相同的报告（运行时间见日志）。
type Report struct {
	Ordinals   []OrdinalReport   `json:"ordinals"`
	Candidates []CandidateReport `json:"candidates"`
	Summary    Summary           `json:"summary"`
}

// OrdinalReport: 单个序号贯穿各阶段的结果。
type OrdinalReport struct {
	Ordinal    int    `json:"ordinal"`
	Digest     string `json:"digest"`
	Cracked    bool   `json:"cracked"`
	Container  string `json:"container,omitempty"`
	State      string `json:"state"`
	Fragment   string `json:"fragment,omitempty"`
	Lines      int    `json:"lines"`
	Code       string `json:"code,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

type CandidateReport struct {
	Line           int    `json:"line"`
	Value          string `json:"value"`
	Winning        bool   `json:"winning"`
	MatchesPattern bool   `json:"matches_pattern,omitempty"`
}

type Summary struct {
	Ordinals  int `json:"ordinals"`
	Cracked   int `json:"cracked"`
	Extracted int `json:"extracted"`
	Decoded   int `json:"decoded"`
	Winning   int `json:"winning"`
	// FlagFound 仅在校验模式下出现。
	FlagFound *bool `json:"flag_found,omitempty"`
}

func newReport(recs []contract.HashRecord) *Report {
	rep := &Report{Ordinals: make([]OrdinalReport, len(recs))}
	for i, rec := range recs {
		rep.Ordinals[i] = OrdinalReport{
			Ordinal: rec.Ordinal.Display(),
			Digest:  rec.Digest,
			State:   "pending",
		}
	}
	rep.Summary.Ordinals = len(recs)
	return rep
}

func (r *Report) setCandidates(cs []contract.CompositeCandidate, pat *regexp.Regexp) {
	r.Candidates = make([]CandidateReport, len(cs))
	win := 0
	for i, c := range cs {
		r.Candidates[i] = CandidateReport{
			Line:    c.LineIndex + 1,
			Value:   c.Value,
			Winning: c.Winning(),
		}
		if pat != nil {
			r.Candidates[i].MatchesPattern = pat.MatchString(c.Value)
		}
		if c.Winning() {
			win++
		}
	}
	r.Summary.Winning = win
}

// checkFlag 在 flag 非空时查找包含它的完整候选；未命中返回 ErrFlagNotFound。
func (r *Report) checkFlag(flag string) error {
	if flag == "" {
		return nil
	}
	found := false
	for _, c := range r.Candidates {
		if c.Winning && strings.Contains(c.Value, flag) {
			found = true
			break
		}
	}
	r.Summary.FlagFound = &found
	if !found {
		return ErrFlagNotFound
	}
	return nil
}

// WinningValues 返回全部完整候选的值（按行号）。
func (r *Report) WinningValues() []string {
	out := []string{}
	for _, c := range r.Candidates {
		if c.Winning {
			out = append(out, c.Value)
		}
	}
	return out
}

func (r *Report) JSON() ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
