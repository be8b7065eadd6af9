package artifact

import (
	"os"
	"path/filepath"
)

// FileStatus は1つの成果物ファイルの状態
type FileStatus struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size"`
}

// VerifyReport は成果物ディレクトリの診断結果
type VerifyReport struct {
	Dir      string       `json:"dir"`
	Files    []FileStatus `json:"files"`
	Loadable bool         `json:"loadable"`
	Error    string       `json:"error,omitempty"`
	Features []string     `json:"features,omitempty"`
	R2Test   float64      `json:"r2_test,omitempty"`
}

// OK reports whether every file exists and the bundle loads.
func (r *VerifyReport) OK() bool {
	for _, f := range r.Files {
		if !f.Exists {
			return false
		}
	}
	return r.Loadable
}

// Verify inspects dir without returning an error: problems are recorded in
// the report.
func Verify(dir string) *VerifyReport {
	report := &VerifyReport{Dir: dir}
	for _, name := range Files {
		path := filepath.Join(dir, name)
		st := FileStatus{Name: name, Path: path}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			st.Exists = true
			st.Size = info.Size()
		}
		report.Files = append(report.Files, st)
	}

	b, err := Load(dir)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Loadable = true
	report.Features = append([]string(nil), b.Metadata.FeatureColumns...)
	report.R2Test = b.Metadata.Metrics.R2Test
	return report
}
