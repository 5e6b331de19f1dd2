package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pointline/liff-portal/internal/config"
	"github.com/pointline/liff-portal/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type homeData struct {
	AppName   string
	Principal session.Principal
	Apps      []config.App
}

type loginData struct {
	CallbackURL string
	Error       string
}

type errorData struct {
	Message   string
	Retryable bool
	Path      string
}

type Coupon struct {
	Title       string
	Description string
	ExpiresAt   string
	Code        string
}

type Activity struct {
	Message string
	Time    string
}

type DashboardStats struct {
	TotalUsers     int
	OrdersToday    int
	MonthlyRevenue int
}

type liffPageData struct {
	Title     string
	Section   string
	Principal session.Principal
	CSRFToken string
	Points    int
	Coupons   []Coupon
}

type dashboardData struct {
	Principal  session.Principal
	CSRFToken  string
	Stats      DashboardStats
	Activities []Activity
}

func (h *handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("Failed to render template", "template", name, "error", err)
	}
}

func (h *handler) renderLIFFPage(w http.ResponseWriter, r *http.Request, principal session.Principal) {
	// mini-app content is tied to a LINE identity
	if !principal.IsLIFF() {
		http.Redirect(w, r, "/", http.StatusFound)

		return
	}

	app, _ := h.deps.Resolver.AppFor(r.URL.Path)

	data := liffPageData{
		Title:     app.Name,
		Section:   strings.TrimPrefix(strings.TrimSuffix(app.PathPrefix, "/"), "/"),
		Principal: principal,
		CSRFToken: h.deps.Sessions.NewCSRFToken(principal),
	}
	if data.Title == "" {
		data.Title = "Mini App"
	}

	switch data.Section {
	case "points":
		data.Points = mockPointsBalance()
	case "coupon":
		data.Coupons = mockCoupons()
	}

	h.render(w, http.StatusOK, "liff.html", data)
}

// TODO: replace the mock business data below once the points and coupon
// APIs exist; the pages only demonstrate an established session.

func mockPointsBalance() int { return 1250 }

func mockCoupons() []Coupon {
	return []Coupon{
		{Title: "ส่วนลด 50 บาท", Description: "สำหรับการสั่งซื้อขั้นต่ำ 200 บาท", ExpiresAt: "2026-12-31", Code: "SAVE50"},
		{Title: "ส่วนลด 10%", Description: "สำหรับสินค้าทุกชิ้น", ExpiresAt: "2026-11-30", Code: "PERCENT10"},
		{Title: "จัดส่งฟรี", Description: "ไม่มีขั้นต่ำ", ExpiresAt: "2026-12-15", Code: "FREESHIP"},
	}
}

func mockDashboardStats() DashboardStats {
	return DashboardStats{
		TotalUsers:     1234,
		OrdersToday:    56,
		MonthlyRevenue: 89400,
	}
}

func mockRecentActivities() []Activity {
	return []Activity{
		{Message: "ผู้ใช้ #1001 ลงทะเบียน", Time: "2 ชั่วโมงที่แล้ว"},
		{Message: "ผู้ใช้ #1002 ลงทะเบียน", Time: "3 ชั่วโมงที่แล้ว"},
		{Message: "ผู้ใช้ #1003 ลงทะเบียน", Time: "4 ชั่วโมงที่แล้ว"},
	}
}
