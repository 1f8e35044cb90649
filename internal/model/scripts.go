package model

// Script names, without extension, in execution order.
const (
	ScriptSchema      = "openPDC"
	ScriptInitialData = "InitialDataSet"
	ScriptSampleData  = "SampleDataSet"
)

// ScriptJob is the ordered list of scripts to run against a scripted server.
type ScriptJob []string

// BuildScriptJob derives the script list from the request flags.
func BuildScriptJob(req *Request) ScriptJob {
	job := ScriptJob{ScriptSchema}
	if req.RunsInitialData() {
		job = append(job, ScriptInitialData)
	}
	if req.RunsSampleData() {
		job = append(job, ScriptSampleData)
	}
	return job
}
