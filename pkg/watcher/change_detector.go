package watcher

// ChangeAnalysis describes what must be redone after a batch of changes
type ChangeAnalysis struct {
	ReloadConfig bool
	Recompile    bool
	ChangedFiles []string
}

// AnalyzeChanges determines the work a change event requires
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeConfig:
		// Format or strictness may have changed, and the input path with them
		analysis.ReloadConfig = true
		analysis.Recompile = true
	case ChangeTypeProcedure:
		analysis.Recompile = true
	}

	return analysis
}
