package auth0

import (
	"bytes"
	"html/template"
)

// pageData feeds callbackPage. Nothing secret (code, state, tokens) is ever placed in it.
type pageData struct {
	Title   string
	Heading string
	Message string
	Detail  string
	Success bool
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * {
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f3f4f6;
            padding: 1rem;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
            width: 100%;
        }
        .icon {
            width: 64px;
            height: 64px;
            margin: 0 auto 1.5rem;
            border-radius: 50%;
            display: flex;
            align-items: center;
            justify-content: center;
            color: white;
            font-size: 2rem;
            font-weight: bold;
        }
        .icon.ok {
            background: #10b981;
        }
        .icon.fail {
            background: #ef4444;
        }
        h1 {
            color: #1f2937;
            margin-bottom: 1rem;
            font-size: 1.75rem;
            font-weight: 600;
        }
        p {
            color: #6b7280;
            line-height: 1.5;
        }
        .detail {
            font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
            font-size: 0.875rem;
            background: #f9fafb;
            border: 1px solid #e5e7eb;
            border-radius: 6px;
            padding: 0.75rem;
            word-break: break-word;
        }
    </style>
</head>
<body>
    <div class="container">
        {{if .Success}}<div class="icon ok">&#10003;</div>{{else}}<div class="icon fail">!</div>{{end}}
        <h1>{{.Heading}}</h1>
        <p>{{.Message}}</p>
        {{if .Detail}}<p class="detail">{{.Detail}}</p>{{end}}
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>`))

func successPage() pageData {
	return pageData{
		Title:   "Authentication Successful",
		Heading: "Authentication Successful",
		Message: "The authorization code was received. The command line will finish signing you in.",
		Success: true,
	}
}

func failurePage(cbErr *CallbackError) pageData {
	data := pageData{
		Title:   "Authentication Failed",
		Heading: "Authentication Failed",
	}
	switch cbErr.Kind {
	case ProviderError:
		data.Message = "The authorization server did not grant access."
		data.Detail = cbErr.Error()
	case StateMismatch:
		data.Message = "This response does not belong to the pending login attempt."
	default:
		data.Message = "The response was missing required parameters."
	}
	return data
}

func alreadyCompletedPage() pageData {
	return pageData{
		Title:   "Already Completed",
		Heading: "Login Already Completed",
		Message: "This login attempt has already received its response.",
	}
}

func methodNotAllowedPage() pageData {
	return pageData{
		Title:   "Method Not Allowed",
		Heading: "Method Not Allowed",
		Message: "The callback endpoint only accepts GET requests.",
	}
}

func renderPage(data pageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := callbackPage.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
