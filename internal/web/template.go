package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/light-orchestra/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"level": func(v float64) string {
		return fmt.Sprintf("%.3f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Light Orchestra</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.armed { color: green; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Light Orchestra<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Light</h2>
<table>
<tr><th>Current light sensor reading</th><td id="sample">{{level .Sample}}</td></tr>
<tr><th>Baseline</th><td id="baseline">{{level .Baseline}}</td></tr>
<tr><th>Mode</th><td id="mode" class="{{if eq (printf "%s" .Mode) "ARMED"}}armed{{else}}idle{{end}}">{{printf "%s" .Mode}}</td></tr>
<tr><th>Calibrated</th><td>{{if .Calibrated}}yes{{else}}no{{end}}</td></tr>
<tr><th>Triggers</th><td id="triggers">{{.Triggers}}</td></tr>
{{if .LastTrigger}}<tr><th>Last melody</th><td>{{.LastTrigger.Sequence}} ({{.LastTrigger.Timestamp.UTC.Format "15:04:05"}})</td></tr>{{end}}
<tr><th>Commanded task</th><td id="task">{{if .TaskActive}}{{.TaskLabel}} {{.TaskID}}{{else}}none{{end}}</td></tr>
<tr><th>Commands</th><td>{{.Commands}}{{if .LastCommand}} (last: {{.LastCommand}}){{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Check period</th><td>{{.Config.CheckPeriodMs}}ms</td></tr>
<tr><th>Cooldown</th><td>{{.Config.CooldownMs}}ms</td></tr>
<tr><th>Sensor</th><td>{{.Config.Sensor}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function set(id, v) { document.getElementById(id).textContent = v; }
  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() { dot.className = "live-dot err"; dot.title = "offline"; setTimeout(connect, 5000); };
    ws.onmessage = function(e) {
      try {
        var s = JSON.parse(e.data).status;
        set("sample", s.light.sample.toFixed(3));
        set("baseline", s.light.baseline.toFixed(3));
        set("mode", s.mode);
        document.getElementById("mode").className = s.armed ? "armed" : "idle";
        set("triggers", s.triggers);
        set("task", s.task.active ? s.task.label + " " + s.task.id : "none");
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
