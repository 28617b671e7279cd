package handlers

import "html/template"

const (
	ViewerTemplate = "viewer.html"
	DeniedTemplate = "denied.html"
)

// ViewerShell is the data rendered into the viewer page.
type ViewerShell struct {
	Title      string
	FileType   string
	ContentURL string
	PitchID    string
	TokenID    string
	Email      string
	SessionID  string
	EventURL   string
	Preview    bool
}

type DeniedPage struct {
	Message string
	Reason  string
}

// Templates parses the viewer and denial pages for gin's HTML renderer.
func Templates() *template.Template {
	t := template.Must(template.New(ViewerTemplate).Parse(viewerHTML))
	return template.Must(t.New(DeniedTemplate).Parse(deniedHTML))
}

const viewerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
html, body { margin: 0; height: 100%; background: #111; }
.frame { border: 0; width: 100%; height: 100%; display: block; background: #fff; }
.image { max-width: 100%; max-height: 100%; margin: auto; display: block; }
.download { color: #eee; font-family: sans-serif; display: block; text-align: center; padding-top: 40vh; }
</style>
</head>
<body>
{{if eq .FileType "html"}}
<iframe class="frame" src="{{.ContentURL}}" sandbox="allow-scripts allow-forms allow-popups" referrerpolicy="no-referrer"></iframe>
{{else if eq .FileType "pdf"}}
<iframe class="frame" src="{{.ContentURL}}"></iframe>
{{else if eq .FileType "image"}}
<img class="image" src="{{.ContentURL}}" alt="{{.Title}}">
{{else}}
<a class="download" href="{{.ContentURL}}">Download {{.Title}}</a>
{{end}}
{{if not .Preview}}
<script>
(function () {
  var started = Date.now();
  var sent = false;
  var base = {
    pitchId: {{.PitchID}},
    tokenId: {{.TokenID}} || undefined,
    email: {{.Email}} || undefined,
    sessionId: {{.SessionID}}
  };
  fetch({{.EventURL}}, {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify(base),
    keepalive: true
  }).catch(function () {});
  function end() {
    if (sent) { return; }
    sent = true;
    var body = Object.assign({}, base, { duration: Math.round((Date.now() - started) / 1000) });
    var blob = new Blob([JSON.stringify(body)], { type: "application/json" });
    if (!navigator.sendBeacon || !navigator.sendBeacon({{.EventURL}}, blob)) {
      fetch({{.EventURL}}, { method: "POST", body: blob, keepalive: true }).catch(function () {});
    }
  }
  window.addEventListener("pagehide", end);
  window.addEventListener("beforeunload", end);
})();
</script>
{{end}}
</body>
</html>
`

const deniedHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Access Denied</title>
<style>
body { font-family: sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
.card { text-align: center; }
</style>
</head>
<body>
<div class="card" data-reason="{{.Reason}}">
<h1>Access Denied</h1>
<p>{{.Message}}</p>
</div>
</body>
</html>
`
