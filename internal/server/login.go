package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/koustreak/tablegate/internal/auth"
	"github.com/koustreak/tablegate/internal/errs"
)

//go:embed templates/login.html
var templateFS embed.FS

type loginPage struct {
	tmpl *template.Template
}

type loginView struct {
	Title  string
	Failed bool
}

func newLoginPage() *loginPage {
	return &loginPage{tmpl: template.Must(template.ParseFS(templateFS, "templates/login.html"))}
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	view := loginView{Title: "tablegate", Failed: r.URL.Query().Get("error") != ""}
	if err := s.login.tmpl.Execute(w, view); err != nil {
		s.log.ErrorWith("render login page", err, nil)
	}
}

// loginSubmit starts a session. Browsers are redirected to the success
// page, or back to the form on bad credentials; JSON clients get 204 or
// the error status.
func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "malformed login form", err))
		return
	}

	cookie, err := s.gate.Login(auth.ClientAddr(r), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if errs.IsUnauthenticated(err) && !auth.WantsJSON(r) {
			http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
			return
		}
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, cookie)
	if auth.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, s.gate.Config().SuccessRedirect, http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.gate.Logout(r))
	if auth.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
