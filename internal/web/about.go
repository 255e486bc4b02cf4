package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"
)

type AboutResponse struct {
	Service   string `json:"service"`
	Version   string `json:"version,omitempty"`
	NowUTC    string `json:"now_utc"`
	GoVersion string `json:"go_version"`
	Module    string `json:"module,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	resp := AboutResponse{
		Service:   s.hub.Service,
		Version:   s.hub.Version,
		NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
		GoVersion: runtime.Version(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		resp.Module = bi.Main.Path
		if resp.Version == "" {
			resp.Version = bi.Main.Version
		}
		for _, kv := range bi.Settings {
			switch kv.Key {
			case "vcs.revision":
				resp.Commit = kv.Value
			case "vcs.modified":
				resp.Dirty = kv.Value == "true"
			case "vcs.time":
				resp.BuildTime = kv.Value
			}
		}
	}

	writeJSON(w, resp)
}
