package dto

import "time"

type BrowserCookie struct {
	Name     string `json:"name" yaml:"name"`
	Value    string `json:"value" yaml:"value"`
	Domain   string `json:"domain" yaml:"domain"`
	Path     string `json:"path" yaml:"path"`
	HTTPOnly bool   `json:"httpOnly" yaml:"httpOnly"`
	Secure   bool   `json:"secure" yaml:"secure"`
}

type Result struct {
	Scenario   string        `json:"scenario" yaml:"scenario"`                         // name of the scenario
	Worker     string        `json:"worker" yaml:"worker"`                             // worker the scenario ran on
	Browser    string        `json:"browser" yaml:"browser"`                           // browser kind of the worker's session
	SessionID  string        `json:"sessionID" yaml:"sessionID"`                       // session the scenario ran in
	Duration   time.Duration `json:"duration" yaml:"duration"`                         // wall time of the scenario
	URL        string        `json:"url,omitempty" yaml:"url,omitempty"`               // page URL when the scenario finished
	Error      *string       `json:"error,omitempty" yaml:"error,omitempty"`           // failure, nil when passed
	Screenshot string        `json:"screenshot,omitempty" yaml:"screenshot,omitempty"` // file with the page state on failure
}

func (r Result) Passed() bool {
	return r.Error == nil
}

type Report struct {
	Browser string   `json:"browser" yaml:"browser"`
	Workers int      `json:"workers" yaml:"workers"`
	Passed  int      `json:"passed" yaml:"passed"`
	Failed  int      `json:"failed" yaml:"failed"`
	Results []Result `json:"results" yaml:"results"`
}
