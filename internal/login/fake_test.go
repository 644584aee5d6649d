package login

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

const loginPageHTML = `<!doctype html>
<html><body>
<form method="post" action="/login/">
  <input id="id_username" name="username" value="%s">
  <input id="id_password" name="password" type="password">
  %s
</form>
</body></html>`

const homePageHTML = `<!doctype html>
<html><body><nav><a href="/logout/">Log out</a></nav></body></html>`

// fakePanel is the server side of the fake: it decides which page a form
// submission leads to.
type fakePanel struct {
	// passwords maps accepted usernames to their password.
	passwords map[string]string
	// prefill is written into the username field, as browser autofill would.
	prefill string
	// submitHTML renders the submit control; defaults to a submit button.
	submitHTML string
	// loginHTML replaces the whole login page when set.
	loginHTML string
	// stuckAfterSubmit makes the submission never navigate.
	stuckAfterSubmit bool
}

func (p *fakePanel) loginPage() string {
	if p.loginHTML != "" {
		return p.loginHTML
	}
	submit := p.submitHTML
	if submit == "" {
		submit = `<button type="submit" class="btn-primary">Sign in</button>`
	}
	return fmt.Sprintf(loginPageHTML, p.prefill, submit)
}

// fakePage implements BrowsingContext over a goquery document.
type fakePage struct {
	panel *fakePanel

	mu      sync.Mutex
	url     string
	doc     *goquery.Document
	values  map[string]string
	clicked []string
	closed  bool
}

var _ BrowsingContext = (*fakePage)(nil)

func newFakePage(panel *fakePanel) *fakePage {
	return &fakePage{panel: panel, values: make(map[string]string)}
}

func (f *fakePage) load(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	f.doc = doc
	f.values = make(map[string]string)
	doc.Find("input[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		f.values["#"+id] = s.AttrOr("value", "")
	})
	return nil
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	return f.load(f.panel.loginPage())
}

func (f *fakePage) has(selector string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc != nil && f.doc.Find(selector).Length() > 0
}

// WaitVisible blocks until ctx ends when the element is missing, like a real
// selector wait.
func (f *fakePage) WaitVisible(ctx context.Context, selector string) error {
	if f.has(selector) {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("wait for %s: %w", selector, ctx.Err())
}

func (f *fakePage) SetValue(ctx context.Context, selector, value string) error {
	if !f.has(selector) {
		return fmt.Errorf("no element %s", selector)
	}
	f.mu.Lock()
	f.values[selector] = value
	f.mu.Unlock()
	return nil
}

// Type appends, as key input does.
func (f *fakePage) Type(ctx context.Context, selector, text string) error {
	if !f.has(selector) {
		return fmt.Errorf("no element %s", selector)
	}
	f.mu.Lock()
	f.values[selector] += text
	f.mu.Unlock()
	return nil
}

func (f *fakePage) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return f.has(selector), nil
}

func (f *fakePage) ClickAndWait(ctx context.Context, selector string) error {
	f.mu.Lock()
	f.clicked = append(f.clicked, selector)
	f.mu.Unlock()

	if f.panel.stuckAfterSubmit {
		<-ctx.Done()
		return fmt.Errorf("click %s: %w", selector, ctx.Err())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	user, pass := f.values["#id_username"], f.values["#id_password"]
	if want, ok := f.panel.passwords[user]; ok && want == pass {
		return f.load(homePageHTML)
	}
	return f.load(f.panel.loginPage())
}

func (f *fakePage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
