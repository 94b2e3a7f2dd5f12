package multiposs

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const (
	testUsername  = "alice"
	testPassword  = "hunter2"
	testSessionId = "7f3a9c"
)

// fakePortal serves the handful of pages the client reads. Pages past the
// login form are only served to requests carrying the session cookie.
type fakePortal struct {
	*httptest.Server

	loginPage   []byte
	landingPage []byte
	mainPage    []byte
	qrPage      []byte
	mainStatus  int
	// when set, /main.php waits for it to be closed before answering
	mainGate chan struct{}

	mu       sync.Mutex
	requests map[string]int
}

func newFakePortal(t testing.TB) *fakePortal {
	p := &fakePortal{
		loginPage:   loginPageTest,
		landingPage: []byte("<html><body>Welcome</body></html>"),
		mainPage:    mainPageTest,
		qrPage:      qrcodePageTest,
		mainStatus:  http.StatusOK,
		requests:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/submit.php", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue(usernameField) != testUsername || r.FormValue(passwordField) != testPassword {
			w.Write([]byte("<html><body><p class=\"error\">Unknown user or password.</p></body></html>"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: testSessionId, Path: "/"})
		w.Write(p.loginPage)
	})
	mux.HandleFunc("GET /start.php", p.authenticated(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session") != testSessionId {
			http.Error(w, "bad session", http.StatusForbidden)
			return
		}
		http.Redirect(w, r, "/welcome.php", http.StatusFound)
	}))
	mux.HandleFunc("GET /welcome.php", p.authenticated(func(w http.ResponseWriter, r *http.Request) {
		w.Write(p.landingPage)
	}))
	mux.HandleFunc("GET /main.php", p.authenticated(func(w http.ResponseWriter, r *http.Request) {
		if p.mainGate != nil {
			<-p.mainGate
		}
		w.WriteHeader(p.mainStatus)
		w.Write(p.mainPage)
	}))
	mux.HandleFunc("GET /GenUserQrcode.php", p.authenticated(func(w http.ResponseWriter, r *http.Request) {
		w.Write(p.qrPage)
	}))

	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.requests[r.URL.Path]++
		p.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *fakePortal) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("PHPSESSID")
		if err != nil || cookie.Value != testSessionId {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (p *fakePortal) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[path]
}
