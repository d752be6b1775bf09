package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate

import (
	"fmt"
	"time"
)

const stylesheet = `
body{font-family:system-ui,sans-serif;margin:0;background:#f5f7fa;color:#1f2937}
header{background:#1f3a5f;color:#fff;padding:.75rem 1.5rem;display:flex;gap:1.5rem;align-items:center}
header a{color:#fff;text-decoration:none;font-weight:600}
main{padding:1.5rem;max-width:1280px;margin:auto}
table{border-collapse:collapse;width:100%;background:#fff}
th,td{padding:.4rem .6rem;border-bottom:1px solid #e5e7eb;text-align:left;font-size:.9rem}
th a{color:inherit}
.alert{padding:.6rem 1rem;border-radius:6px;margin-bottom:1rem}
.alert-success{background:#e8f5e9;color:#1b5e20}
.alert-error{background:#ffebee;color:#b71c1c}
.field-error{color:#b71c1c;font-size:.8rem}
.muted{color:#6b7280}
.panel{background:#fff;border:1px solid #e5e7eb;border-radius:8px;padding:1rem;margin-bottom:1rem}
.pager a,.pager span{margin-right:.4rem}
.grid2{display:grid;grid-template-columns:1fr 1fr;gap:1rem}
`

func expiryTrigger(expiresIn time.Duration) string {
	return fmt.Sprintf("load delay:%dms", expiresIn.Milliseconds())
}
