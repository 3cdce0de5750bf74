package server

import (
	"net/http"
	"os"
	"time"

	"github.com/cyclopcam/landcover/pkg/render"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

type pingJSON struct {
	Greeting string `json:"greeting"`
	Hostname string `json:"hostname"`
	Time     int64  `json:"time"`
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	hostname, _ := os.Hostname()
	ping := &pingJSON{
		Greeting: "I am Landcover",
		Hostname: hostname,
		Time:     time.Now().Unix(),
	}
	www.SendJSON(w, ping)
}

func (s *Server) httpModel(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.model.Config())
}

func (s *Server) httpLegend(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	png, err := render.Legend(s.palette, s.model.Config().Classes)
	www.Check(err)
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
