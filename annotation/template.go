package annotation

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/abiosoft/mold"
	"github.com/russross/blackfriday/v2"
)

var (
	//go:embed templates
	templateFS embed.FS

	//go:embed assets/style.css
	cssContent string

	// TemplateFuncMap contains custom template functions available globally
	TemplateFuncMap = template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"markdown": func(text string) template.HTML {
			return template.HTML(blackfriday.Run([]byte(text)))
		},
	}

	templateEngine mold.Engine
)

func init() {
	root, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	templateEngine, err = mold.New(root,
		mold.WithLayout("layout.html"),
		mold.WithFuncMap(TemplateFuncMap),
	)
	if err != nil {
		panic(err)
	}
}

// RenderPage renders templates/<page>.html inside the layout. Every page gets
// the request translator as .T and the stylesheet as .CSS.
func RenderPage(r *http.Request, w io.Writer, page string, data map[string]any) error {
	if data == nil {
		data = make(map[string]any)
	}
	data["CSS"] = template.CSS(cssContent)
	data["T"] = NewTranslator(r.Context())
	if session := GetSession(r.Context()); session != nil {
		data["UserName"] = session.Name
	}
	return templateEngine.Render(w, page+".html", data)
}
