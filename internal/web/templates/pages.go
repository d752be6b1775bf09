package templates

import (
	"context"
	"fmt"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/view"
)

// DetailPage shows one company.
func DetailPage(v *view.Detail) templ.Component {
	return component(func(ctx context.Context, h *html) {
		if v.NotFound() {
			h.render(ctx, ErrorPanel("Record not found"))
			h.raw(`<p><a href="/companies">Back to companies</a></p>`)
			return
		}
		if v.Err != nil {
			h.render(ctx, ErrorPanel("Failed to load company: "+v.ErrorMessage()))
			return
		}

		r := v.Record
		h.raw("<h1>")
		h.text(r.Label())
		h.raw(`</h1><div class="panel"><table>`)
		for _, c := range record.Columns {
			h.raw("<tr><th>")
			h.text(c.Label)
			h.raw("</th><td>")
			h.text(r.Display(c.Key))
			h.raw("</td></tr>")
		}
		h.raw("</table></div><p><a")
		h.attr("href", fmt.Sprintf("/companies/%d/edit", v.ID))
		h.raw(">Edit</a> <button")
		h.attr("hx-get", fmt.Sprintf("/companies/%d/delete", v.ID))
		h.attr("hx-target", "#confirm")
		h.raw(`>Delete</button> <a href="/companies">Back</a></p><div id="confirm">`)
		if v.Confirming {
			h.render(ctx, DetailDeleteConfirm(v))
		}
		h.raw("</div>")
	})
}

// DetailDeleteConfirm asks before deleting from the detail page.
func DetailDeleteConfirm(v *view.Detail) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<div class="panel" role="alertdialog"><p>`)
		h.text(fmt.Sprintf("Delete %s?", v.Record.Label()))
		h.raw("</p>")
		if v.DeleteErr != nil {
			h.raw(`<p class="field-error">`)
			h.text("Delete failed: " + source.MapError(v.DeleteErr).Message)
			h.raw("</p>")
		}
		h.raw("<form method=\"post\"")
		h.attr("action", fmt.Sprintf("/companies/%d/delete", v.ID))
		h.attr("hx-post", fmt.Sprintf("/companies/%d/delete", v.ID))
		h.attr("hx-target", "#confirm")
		h.raw(`><button type="submit">Delete</button> <a`)
		h.attr("href", fmt.Sprintf("/companies/%d", v.ID))
		h.raw(">Cancel</a></form></div>")
	})
}

// FormPage is the create or edit form.
func FormPage(f *view.Form) templ.Component {
	return component(func(ctx context.Context, h *html) {
		action := "/companies"
		title := "New company"
		if f.Mode == view.EditMode {
			action = fmt.Sprintf("/companies/%d", f.ID)
			title = fmt.Sprintf("Edit company %d", f.ID)
		}

		if f.LoadErr != nil {
			if source.IsNotFound(f.LoadErr) {
				h.render(ctx, ErrorPanel("Record not found"))
			} else {
				h.render(ctx, ErrorPanel("Failed to load company: "+source.MapError(f.LoadErr).Message))
			}
			return
		}

		h.raw("<h1>")
		h.text(title)
		h.raw("</h1>")
		h.raw(`<form id="company-form" class="panel" method="post"`)
		h.attr("action", action)
		h.attr("hx-post", action)
		h.attr("hx-target", "#company-form")
		h.attr("hx-swap", "outerHTML")
		h.attr("hx-select", "#company-form")
		h.raw(">")
		if f.Banner != "" {
			h.raw(`<div class="alert alert-error" role="alert">`)
			h.text(f.Banner)
			h.raw("</div>")
		}
		for _, c := range record.EditableColumns() {
			h.render(ctx, FormField(c, f.Value(c.Key), f.FieldError(c.Key)))
		}
		h.raw(`<button type="submit">Save</button> <a href="/companies">Cancel</a></form>`)
	})
}

func inputType(k record.Kind) string {
	switch k {
	case record.KindEmail:
		return "email"
	case record.KindPhone:
		return "tel"
	case record.KindDate:
		return "date"
	default:
		return "text"
	}
}

// FormField is one labelled input. Typing re-validates the field.
func FormField(c record.Column, value, errMsg string) templ.Component {
	return component(func(ctx context.Context, h *html) {
		id := "field-" + c.Key
		h.raw("<div")
		h.attr("id", id)
		h.raw("><label>")
		h.text(c.Label)
		if c.Required {
			h.raw(" *")
		}
		h.raw("<br><input")
		h.attr("id", "input-"+c.Key)
		h.attr("type", inputType(c.Kind))
		h.attr("name", c.Key)
		h.attr("value", value)
		h.attr("hx-post", "/companies/validate?field="+c.Key)
		h.attr("hx-trigger", "keyup changed delay:300ms")
		h.attr("hx-target", "#"+id)
		h.attr("hx-swap", "outerHTML")
		h.attr("hx-select", "#"+id)
		h.raw("></label>")
		if errMsg != "" {
			h.raw(`<div class="field-error">`)
			h.text(errMsg)
			h.raw("</div>")
		}
		h.raw("</div>")
	})
}

// StatsPage shows the statistics panels. Each panel reports its own failure.
func StatsPage(v *view.Stats) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<h1>Statistics</h1><div class="grid2">`)

		panel(ctx, h, "Totals", v.Totals.ErrorMessage(), func() {
			s := v.Totals.Data
			kv(h, [][2]string{
				{"Companies", fmt.Sprint(s.TotalCompanies)},
				{"With ongoing deals", fmt.Sprint(s.CompaniesWithOngoingDeals)},
				{"Ongoing deals", fmt.Sprint(s.TotalOngoingDeals)},
				{"Closed deals", fmt.Sprint(s.TotalClosedDeals)},
				{"Invoices", fmt.Sprint(s.TotalInvoices)},
				{"Revenue", record.FormatAmount(s.TotalRevenue)},
			})
		})

		panel(ctx, h, "Companies by owner", v.ByOwner.ErrorMessage(), func() {
			if len(v.ByOwner.Data) == 0 {
				h.raw(`<p class="muted">No owners</p>`)
				return
			}
			rows := make([][2]string, len(v.ByOwner.Data))
			for i, oc := range v.ByOwner.Data {
				rows[i] = [2]string{oc.Owner, fmt.Sprint(oc.Count)}
			}
			kv(h, rows)
		})

		panel(ctx, h, "Deals", v.Dashboard.ErrorMessage(), func() {
			d := v.Dashboard.Data
			kv(h, [][2]string{
				{"Ongoing", fmt.Sprint(d.Deals.Ongoing)},
				{"Closed", fmt.Sprint(d.Deals.Closed)},
				{"Total", fmt.Sprint(d.Deals.Total)},
				{"Conversion", fmt.Sprintf("%.1f%%", v.ConversionRate())},
			})
			if len(d.RecentCompanies) > 0 {
				h.raw("<h3>Recent companies</h3><ul>")
				for _, r := range d.RecentCompanies {
					h.raw("<li><a")
					h.attr("href", fmt.Sprintf("/companies/%d", r.ID))
					h.raw(">")
					h.text(r.Label())
					h.raw("</a></li>")
				}
				h.raw("</ul>")
			}
		})

		panel(ctx, h, "Upcoming activity", v.Activity.ErrorMessage(), func() {
			if len(v.Activity.Data) == 0 {
				h.raw(`<p class="muted">Nothing scheduled</p>`)
				return
			}
			h.raw("<table>")
			for _, r := range v.Activity.Data {
				h.raw("<tr><td>")
				h.text(r.Display("next_activity"))
				h.raw("</td><td>")
				h.text(r.Label())
				h.raw("</td><td>")
				h.text(r.Display("owner"))
				h.raw("</td></tr>")
			}
			h.raw("</table>")
		})

		h.raw("</div>")
	})
}

func panel(ctx context.Context, h *html, title, errMsg string, body func()) {
	h.raw(`<section class="panel"><h2>`)
	h.text(title)
	h.raw("</h2>")
	if errMsg != "" {
		h.render(ctx, ErrorAlert(errMsg, "", ""))
	} else {
		body()
	}
	h.raw("</section>")
}

func kv(h *html, rows [][2]string) {
	h.raw("<table>")
	for _, r := range rows {
		h.raw("<tr><th>")
		h.text(r[0])
		h.raw("</th><td>")
		h.text(r[1])
		h.raw("</td></tr>")
	}
	h.raw("</table>")
}
