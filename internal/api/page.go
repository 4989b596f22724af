package api

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/abelzeko/radar-loop/internal/timeline"
	log "github.com/sirupsen/logrus"
)

var pageTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>레이더 영상</title>
<style>
body { font-family: sans-serif; margin: 0 auto; max-width: 1000px; padding: 8px; }
.controls { display: flex; flex-wrap: wrap; gap: 8px; align-items: center; margin-bottom: 8px; }
#sliderImage { width: 100%; }
#timeSlider { width: 100%; }
</style>
</head>
<body>
<div class="controls">
  <select id="regionSelect">
  {{- range .Regions}}
    <option value="{{.Key}}"{{if eq .Key $.Region}} selected{{end}}>{{.Name}}</option>
  {{- end}}
  </select>
  <label><input type="checkbox" id="centerCheckbox"{{if .Center}} checked{{end}}> 중심</label>
  <label><input type="checkbox" id="windVectorCheckbox"{{if .WindVector}} checked{{end}}> 바람</label>
  <button id="slowerButton">-</button>
  <span id="speedDisplayContainer">{{.Speed}}</span>
  <button id="fasterButton">+</button>
  <button id="playPauseButton">{{if .Running}}정지{{else}}재생{{end}}</button>
</div>
<input type="range" id="timeSlider" min="1" max="{{.FrameCount}}" value="{{.SliderValue}}">
<div id="timeDisplay">{{.Label}}</div>
<img id="sliderImage" src="{{.Image}}" alt="radar">
<div id="lastRefresh">마지막 갱신: {{.SyncedAt}}</div>
<script>
(function () {
  const post = (path, body) => fetch(path, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body || {})})
    .then(r => r.json()).then(applyState);
  const $ = id => document.getElementById(id);
  function applyState(s) {
    if (!s || !s.frames) return;
    $('timeSlider').max = s.frames.length;
    $('speedDisplayContainer').textContent = (s.period_ms / 1000).toFixed(1) + ' s/frame';
    $('playPauseButton').textContent = s.running ? '정지' : '재생';
    const f = s.frames[s.cursor];
    if (f) showFrame(f.index, f.image, f.label);
  }
  function showFrame(index, image, label) {
    $('timeSlider').value = index + 1;
    $('sliderImage').src = image;
    $('timeDisplay').textContent = label;
  }
  $('regionSelect').addEventListener('change', e => post('/api/region', {region: e.target.value}));
  $('centerCheckbox').addEventListener('change', e => post('/api/center', {enabled: e.target.checked}));
  $('windVectorCheckbox').addEventListener('change', e => post('/api/wind', {enabled: e.target.checked}));
  $('fasterButton').addEventListener('click', () => post('/api/speed', {delta: -100}));
  $('slowerButton').addEventListener('click', () => post('/api/speed', {delta: 100}));
  $('playPauseButton').addEventListener('click', () => post('/api/play'));
  $('timeSlider').addEventListener('input', e => post('/api/seek', {index: parseInt(e.target.value, 10) - 1}));
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = m => { const f = JSON.parse(m.data); showFrame(f.index, f.image, f.label); };
  setInterval(() => location.reload(), 300000);
})();
</script>
</body>
</html>
`))

type pageData struct {
	Regions     []entities.RegionProfile
	Region      string
	Center      bool
	WindVector  bool
	Running     bool
	Speed       string
	FrameCount  int
	SliderValue int
	Label       string
	Image       string
	SyncedAt    string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	view := s.useCase.Snapshot()
	data := pageData{
		Regions:     entities.Regions(),
		Region:      view.Region.Key,
		Center:      view.Center,
		WindVector:  view.WindVector,
		Running:     view.State.Running,
		Speed:       fmt.Sprintf("%.1f s/frame", float64(view.State.PeriodMillis)/1000),
		FrameCount:  len(view.Frames),
		SliderValue: view.State.Cursor + 1,
	}
	if !view.SyncedAt.IsZero() {
		data.SyncedAt = timeline.FormatDisplay(view.SyncedAt.In(s.useCase.Location()))
	}
	if frame, ok := view.Current(); ok {
		data.Label = timeline.FormatDisplay(frame.Timestamp)
		data.Image = frameImagePath(view.State.Cursor, frame)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Printf("Error rendering viewer page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
