package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// Email is a rendered subject and HTML body.
type Email struct {
	Subject string
	HTML    string
}

// RequestInfo carries what every notification email shows about a request.
type RequestInfo struct {
	Number        string
	Title         string
	RequesterName string
	ActorName     string
	Comments      string
	Step          int
	Link          string
}

var layout = template.Must(template.New("email").Parse(`<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto">
<h2 style="color:{{.Color}}">{{.Heading}}</h2>
<p>{{.Lead}}</p>
<table style="border-collapse:collapse">
<tr><td style="padding:4px 12px 4px 0"><strong>Request #</strong></td><td>{{.Info.Number}}</td></tr>
<tr><td style="padding:4px 12px 4px 0"><strong>Title</strong></td><td>{{.Info.Title}}</td></tr>
{{if .Info.RequesterName}}<tr><td style="padding:4px 12px 4px 0"><strong>Requester</strong></td><td>{{.Info.RequesterName}}</td></tr>{{end}}
{{if .Info.Comments}}<tr><td style="padding:4px 12px 4px 0"><strong>Comments</strong></td><td>{{.Info.Comments}}</td></tr>{{end}}
</table>
{{if .Info.Link}}<p><a href="{{.Info.Link}}">View request</a></p>{{end}}
</div>`))

type view struct {
	Heading string
	Lead    string
	Color   string
	Info    RequestInfo
}

func render(v view) string {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, v); err != nil {
		return v.Lead
	}
	return buf.String()
}

func ApprovalRequired(info RequestInfo) Email {
	return Email{
		Subject: fmt.Sprintf("Approval Required: %s - %s", info.Number, info.Title),
		HTML: render(view{
			Heading: "Approval Required",
			Lead:    fmt.Sprintf("A request is waiting for your approval (step %d).", info.Step),
			Color:   "#1a56db",
			Info:    info,
		}),
	}
}

func RequestApproved(info RequestInfo) Email {
	return Email{
		Subject: fmt.Sprintf("Request Approved: %s - %s", info.Number, info.Title),
		HTML: render(view{
			Heading: "Request Approved",
			Lead:    "Your request has been fully approved.",
			Color:   "#057a55",
			Info:    info,
		}),
	}
}

func RequestRejected(info RequestInfo) Email {
	return Email{
		Subject: fmt.Sprintf("Request Rejected: %s - %s", info.Number, info.Title),
		HTML: render(view{
			Heading: "Request Rejected",
			Lead:    fmt.Sprintf("Your request was rejected by %s.", info.ActorName),
			Color:   "#c81e1e",
			Info:    info,
		}),
	}
}
