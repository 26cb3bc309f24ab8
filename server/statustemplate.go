package server

import "html/template"

type statusTemplateData struct {
	Status    Status
	CSRFField template.HTML
}

const templateString = `
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>toupcamd status</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", "Roboto", "Helvetica Neue", Arial, sans-serif;
      margin: 2em;
    }
    h1 { font-size: 28px; }
    table { border-collapse: collapse; }
    td { padding: 4px 12px 4px 0; }
    td:first-child { color: #858585; }
  </style>
</head>
<body>
  <h1>toupcamd {{.Status.Version}}</h1>
  <table>
    <tr><td>Device</td><td>{{.Status.Device}}</td></tr>
    <tr><td>Streaming</td><td>{{.Status.Streaming}}</td></tr>
    <tr><td>Mode</td><td>{{.Status.Mode}}</td></tr>
    <tr><td>Depth</td><td>{{.Status.Depth}}</td></tr>
    <tr><td>Frames</td><td>{{.Status.Frames}}</td></tr>
    <tr><td>Dropped</td><td>{{.Status.Dropped}}</td></tr>
    <tr><td>Last readout</td><td>{{.Status.LastTook}}</td></tr>
  </table>
  <form action="/status/log.gz" method="POST">
    {{.CSRFField}}
    <button type="submit">Download detailed trace</button>
  </form>
</body>
</html>
`

var statusTemplate = template.Must(template.New("status").Parse(templateString))
