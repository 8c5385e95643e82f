package ingest

// SourceOutcome 是单个数据源一次处理的结果；Err 为 nil 即成功
type SourceOutcome struct {
	SourceID   string
	SourceName string
	Fetched    int
	Inserted   int
	Err        error
}

func (o SourceOutcome) OK() bool {
	return o.Err == nil
}

// SourceResult 是 SourceOutcome 的对外 JSON 形式
type SourceResult struct {
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

// RunReport 汇总一次执行；dry run 时 TotalInserted 为“将会新增”的条数
type RunReport struct {
	OK            bool           `json:"ok"`
	RunID         string         `json:"run_id"`
	DryRun        bool           `json:"dry_run"`
	TotalSources  int            `json:"total_sources"`
	TotalFetched  int            `json:"total_fetched"`
	TotalInserted int            `json:"total_inserted"`
	Results       []SourceResult `json:"results"`
}

func newReport(runID string, dryRun bool, outcomes []SourceOutcome) *RunReport {
	r := &RunReport{
		OK:           true,
		RunID:        runID,
		DryRun:       dryRun,
		TotalSources: len(outcomes),
		Results:      make([]SourceResult, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		r.TotalFetched += o.Fetched
		r.TotalInserted += o.Inserted
		res := SourceResult{
			Source:   o.SourceName,
			SourceID: o.SourceID,
			Fetched:  o.Fetched,
			Inserted: o.Inserted,
		}
		if !o.OK() {
			res.Error = o.Err.Error()
		}
		r.Results = append(r.Results, res)
	}
	return r
}

// Failed 返回失败的数据源数量
func (r *RunReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}
