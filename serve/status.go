package serve

import (
	"encoding/json"
	"net/http"

	"camdvr/video"
)

type StatusResponse struct {
	Count   int                  `json:"count"`
	Cameras []video.CameraStatus `json:"cameras"`
}

// StatusServer reports the active per-camera supervisors for external
// health/monitoring collaborators.
type StatusServer struct {
	Manager *video.Manager
}

func (s *StatusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cams := s.Manager.Status()
	js, err := json.Marshal(&StatusResponse{Count: len(cams), Cameras: cams})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
