package crawler

import (
	"fmt"
	"time"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

// Binding tells an Extractor which page family it is reading and how to label
// the records it produces.
type Binding struct {
	Kind    lead.Source
	Query   string
	Company string
}

// Source is one logical crawl: how to address page N and how to read it.
// The engine's control flow is identical for every Source.
type Source struct {
	Binding
	// Delay overrides the per-family throttle interval when positive.
	Delay    time.Duration
	BuildURL func(page int) string
}

// SearchSource crawls keyword search results.
func SearchSource(req lead.SearchRequest) Source {
	return Source{
		Binding:  Binding{Kind: lead.SourceSearch, Query: req.Keywords},
		BuildURL: func(page int) string { return SearchURL(req, page) },
	}
}

// SalesNavSource crawls advanced search results.
func SalesNavSource(req lead.SearchRequest) Source {
	return Source{
		Binding:  Binding{Kind: lead.SourceSalesNavigator, Query: req.Keywords},
		BuildURL: func(page int) string { return SalesNavURL(req, page) },
	}
}

// CompanySource crawls an organization roster. The company slug is required.
func CompanySource(req lead.SearchRequest) (Source, error) {
	if req.Company == "" {
		return Source{}, fmt.Errorf("company slug is required")
	}
	return Source{
		Binding:  Binding{Kind: lead.SourceCompany, Query: req.Company, Company: req.Company},
		BuildURL: func(page int) string { return CompanyURL(req, page) },
	}, nil
}

// SourceFor picks the builder for kind.
func SourceFor(kind lead.Source, req lead.SearchRequest) (Source, error) {
	switch kind {
	case lead.SourceSearch:
		return SearchSource(req), nil
	case lead.SourceSalesNavigator:
		return SalesNavSource(req), nil
	case lead.SourceCompany:
		return CompanySource(req)
	default:
		return Source{}, fmt.Errorf("unknown lead source %q", kind)
	}
}

// URLSource paginates an arbitrary result URL pasted by the operator. The
// family is detected from the path and the label is the URL without its
// volatile parameters.
func URLSource(raw string) (Source, error) {
	if err := ValidateResultURL(raw); err != nil {
		return Source{}, err
	}
	kind := DetectSource(raw)
	binding := Binding{Kind: kind, Query: CanonicalQueryURL(raw)}
	if kind == lead.SourceCompany {
		binding.Company = CompanyFromURL(raw)
	}
	return Source{
		Binding: binding,
		BuildURL: func(page int) string {
			out, err := PageURL(raw, page)
			if err != nil {
				return raw
			}
			return out
		},
	}, nil
}
