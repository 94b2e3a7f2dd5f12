package multiposs

import (
	"context"
	"multiposs/lib/htmlutil"
	"multiposs/lib/telemetry"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	_ "embed"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

//go:embed login_page_test.html
var loginPageTest []byte

//go:embed main_page_test.html
var mainPageTest []byte

//go:embed qrcode_page_test.txt
var qrcodePageTest []byte

func newTestClient(t testing.TB, portal *fakePortal, password string) *Client {
	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:  portal.URL,
		Username: testUsername,
		Password: password,
		Timeout:  time.Second * 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(context.Background(), ClientOptions{
		Username: testUsername,
		Password: testPassword,
	})
	require.NoError(t, err)
	require.Equal(t, DefaultBaseUrl, client.BaseUrl.String())
	require.Equal(t, "https://duwo.multiposs.nl/login/submit.php", client.loginUrl().String())
	require.Equal(t, testUsername, client.Username())

	_, err = NewClient(context.Background(), ClientOptions{BaseUrl: "/relative"})
	require.Error(t, err)
}

func TestResolveSessionUrl(t *testing.T) {
	loginUrl, err := url.Parse("https://duwo.multiposs.nl/login/submit.php")
	require.NoError(t, err)

	testCases := []struct {
		body   string
		expect string
	}{
		{
			body:   "document.location = '/foo/bar.php';",
			expect: "https://duwo.multiposs.nl/foo/bar.php",
		},
		{
			body:   "<script>\n\t  document.location = 'start.php?sid=1';  \n</script>",
			expect: "https://duwo.multiposs.nl/login/start.php?sid=1",
		},
		{
			body:   "DOCUMENT.LOCATION = '../main.php';",
			expect: "https://duwo.multiposs.nl/main.php",
		},
		{
			body:   "document.location = 'https://other.multiposs.nl/x.php';",
			expect: "https://other.multiposs.nl/x.php",
		},
		{
			body:   "\u00a0\u00a0document.location = '/nbsp.php';\u00a0",
			expect: "https://duwo.multiposs.nl/nbsp.php",
		},
		{
			body:   "\vdocument.location = '/x.php';\ufeff",
			expect: "https://duwo.multiposs.nl/x.php",
		},
		{
			body:   string(loginPageTest),
			expect: "https://duwo.multiposs.nl/start.php?session=7f3a9c",
		},
	}

	for _, test := range testCases {
		res, err := resolveSessionUrl(context.Background(), loginUrl, test.body)
		require.NoError(t, err, test.body)
		require.Equal(t, test.expect, res.String())
	}

	_, err = resolveSessionUrl(context.Background(), loginUrl, "<p>Unknown user or password.</p>")
	require.ErrorIs(t, err, LoginMarkerNotFound)
	require.ErrorIs(t, err, htmlutil.MarkerNotFound)
}

func TestLogin(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:multiposs")
	defer cleanup()

	portal := newFakePortal(t)
	client := newTestClient(t, portal, testPassword)

	ok, err := client.LoggedIn(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.LoggedIn(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, 1, portal.count(loginPath))
	require.Equal(t, 1, portal.count("/start.php"))
	require.Equal(t, 1, portal.count("/welcome.php"))

	ok, err = client.RefreshLogin(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, portal.count(loginPath))
}

func TestLoginMarkerNotFound(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal, "wrong password")

	_, err := client.LoggedIn(context.Background())
	require.ErrorIs(t, err, LoginMarkerNotFound)
	require.Equal(t, 0, portal.count("/start.php"))

	// the failure is cached
	_, err = client.LoggedIn(context.Background())
	require.ErrorIs(t, err, LoginMarkerNotFound)
	require.Equal(t, 1, portal.count(loginPath))

	_, err = client.Balance(context.Background())
	require.ErrorIs(t, err, LoginMarkerNotFound)
	_, err = client.QrId(context.Background())
	require.ErrorIs(t, err, LoginMarkerNotFound)
	require.Equal(t, 0, portal.count(mainPath))
	require.Equal(t, 0, portal.count(qrCodePath))

	_, err = client.RefreshLogin(context.Background())
	require.ErrorIs(t, err, LoginMarkerNotFound)
	require.Equal(t, 2, portal.count(loginPath))
}

func TestParseBalance(t *testing.T) {
	testCases := []struct {
		text   string
		expect Balance
	}{
		{text: " 1,234 ", expect: Balance{Credits: 1234, Valid: true, Raw: "1,234"}},
		{text: "\n\t12,345,678\n", expect: Balance{Credits: 12345678, Valid: true, Raw: "12,345,678"}},
		{text: "0", expect: Balance{Credits: 0, Valid: true, Raw: "0"}},
		{text: "-250", expect: Balance{Credits: -250, Valid: true, Raw: "-250"}},
		{text: "75 credits", expect: Balance{Credits: 75, Valid: true, Raw: "75 credits"}},
		{text: "n/a", expect: Balance{Raw: "n/a"}},
		{text: "", expect: Balance{}},
		{text: "credits: 12", expect: Balance{Raw: "credits: 12"}},
	}

	for _, test := range testCases {
		diff := cmp.Diff(test.expect, ParseBalance(test.text))
		require.Empty(t, diff, test.text)
	}

	require.Equal(t, "NaN", ParseBalance("n/a").String())
	require.Equal(t, "1234", ParseBalance("1,234").String())
}

func TestExtractBalance(t *testing.T) {
	balance, err := extractBalance(context.Background(), []byte(`<span id="LblUserCredits"> 1,234 </span>`))
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(Balance{Credits: 1234, Valid: true, Raw: "1,234"}, balance))

	balance, err = extractBalance(context.Background(), mainPageTest)
	require.NoError(t, err)
	require.Equal(t, int64(12345), balance.Credits)
	require.True(t, balance.Valid)

	balance, err = extractBalance(context.Background(), []byte(`<span id="LblUserCredits">unavailable</span>`))
	require.NoError(t, err)
	require.False(t, balance.Valid)
}

func TestExtractQrId(t *testing.T) {
	id, err := extractQrId(context.Background(), `  "text": "abc123XYZ"  `)
	require.NoError(t, err)
	require.Equal(t, "abc123XYZ", id)

	id, err = extractQrId(context.Background(), string(qrcodePageTest))
	require.NoError(t, err)
	require.Equal(t, "MP-00421-ab7Kq9", id)

	id, err = extractQrId(context.Background(), "\u00a0\"text\": \"abc\"\u2028")
	require.NoError(t, err)
	require.Equal(t, "abc", id)

	id, err = extractQrId(context.Background(), "\ufeff\v\"text\": \"def\"")
	require.NoError(t, err)
	require.Equal(t, "def", id)

	_, err = extractQrId(context.Background(), `{"text": "inline"}`)
	require.ErrorIs(t, err, QrIdNotFound)
}

func TestBalanceCoalescesConcurrentCalls(t *testing.T) {
	portal := newFakePortal(t)
	portal.mainGate = make(chan struct{})
	client := newTestClient(t, portal, testPassword)

	results := make([]Balance, 2)
	errs := make([]error, 2)
	wg := sync.WaitGroup{}
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = client.Balance(context.Background())
		}()
	}

	require.Eventually(t, func() bool {
		return portal.count(mainPath) == 1
	}, time.Second*5, time.Millisecond*10)
	time.Sleep(time.Millisecond * 50)
	close(portal.mainGate)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, int64(12345), results[i].Credits)
	}
	require.Equal(t, 1, portal.count(mainPath))
	require.Equal(t, 1, portal.count(loginPath))

	balance, err := client.Balance(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12345), balance.Credits)
	require.Equal(t, 1, portal.count(mainPath))
}

func TestBalanceFromLandingPage(t *testing.T) {
	portal := newFakePortal(t)
	portal.landingPage = []byte(`<html><body><span id="LblUserCredits"> 1,000 </span></body></html>`)
	client := newTestClient(t, portal, testPassword)

	_, err := client.LoggedIn(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		balance, ok := client.CachedBalance()
		return ok && balance.Credits == 1000
	}, time.Second*5, time.Millisecond*10)

	balance, err := client.Balance(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1000), balance.Credits)
	require.Equal(t, 0, portal.count(mainPath))

	balance, err = client.RefreshBalance(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12345), balance.Credits)
	require.Equal(t, 1, portal.count(mainPath))

	balance, err = client.Balance(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12345), balance.Credits)
}

func TestPrimeBalanceAfterInvalidate(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal, testPassword)
	landing := []byte(`<span id="LblUserCredits">1,000</span>`)

	generation := client.balance.Generation()
	client.Invalidate()
	client.primeBalance(context.Background(), generation, landing)

	_, ok := client.CachedBalance()
	require.False(t, ok)

	client.primeBalance(context.Background(), client.balance.Generation(), landing)
	balance, ok := client.CachedBalance()
	require.True(t, ok)
	require.Equal(t, int64(1000), balance.Credits)
}

func TestRefreshBalanceWithoutLandingBalance(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal, testPassword)

	balance, err := client.RefreshBalance(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12345), balance.Credits)

	cached, ok := client.CachedBalance()
	require.True(t, ok)
	require.Equal(t, balance, cached)
}

func TestBalanceMalformed(t *testing.T) {
	portal := newFakePortal(t)
	portal.mainPage = []byte(`<span id="LblUserCredits">--</span>`)
	client := newTestClient(t, portal, testPassword)

	balance, err := client.Balance(context.Background())
	require.NoError(t, err)
	require.False(t, balance.Valid)
	require.Equal(t, "--", balance.Raw)
}

func TestBalanceServerError(t *testing.T) {
	portal := newFakePortal(t)
	portal.mainStatus = http.StatusInternalServerError
	client := newTestClient(t, portal, testPassword)

	_, err := client.Balance(context.Background())
	require.ErrorContains(t, err, "500")

	_, ok := client.CachedBalance()
	require.False(t, ok)
}

func TestQrId(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal, testPassword)

	id, err := client.QrId(context.Background())
	require.NoError(t, err)
	require.Equal(t, "MP-00421-ab7Kq9", id)

	id, err = client.QrId(context.Background())
	require.NoError(t, err)
	require.Equal(t, "MP-00421-ab7Kq9", id)
	require.Equal(t, 1, portal.count(qrCodePath))

	cached, ok := client.CachedQrId()
	require.True(t, ok)
	require.Equal(t, id, cached)

	id, err = client.RefreshQrId(context.Background())
	require.NoError(t, err)
	require.Equal(t, "MP-00421-ab7Kq9", id)
	require.Equal(t, 2, portal.count(qrCodePath))
	require.Equal(t, 1, portal.count(loginPath))
}

func TestQrIdNotFound(t *testing.T) {
	portal := newFakePortal(t)
	portal.qrPage = []byte("<html><body>QR codes are disabled.</body></html>")
	client := newTestClient(t, portal, testPassword)

	_, err := client.QrId(context.Background())
	require.ErrorIs(t, err, QrIdNotFound)
	require.ErrorIs(t, err, htmlutil.MarkerNotFound)

	_, ok := client.CachedQrId()
	require.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal, testPassword)

	_, err := client.Balance(context.Background())
	require.NoError(t, err)
	_, err = client.QrId(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, portal.count(loginPath))

	client.Invalidate()

	_, err = client.Balance(context.Background())
	require.NoError(t, err)
	_, err = client.QrId(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, portal.count(loginPath))
	require.Equal(t, 2, portal.count(mainPath))
	require.Equal(t, 2, portal.count(qrCodePath))
}
