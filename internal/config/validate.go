package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

var ErrInvalidSettings = errors.New("invalid settings")

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("%w:\n- %s", ErrInvalidSettings, strings.Join(v.Errors, "\n- "))
}

var settingsValidator = newSettingsValidator()

func newSettingsValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("board_url", boardURLValidator)
	_ = v.RegisterValidation("linkedin_mode", linkedInModeValidator)
	return v
}

func boardURLValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return validHTTPURL(val)
}

func linkedInModeValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return val == LinkedInModeEmail || val == LinkedInModeWhitelistCrawl
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Settings.")
	switch fe.Tag() {
	case "board_url":
		return fmt.Sprintf("%s: malformed board URL %q (want http(s)://host/...)", field, fe.Value())
	case "linkedin_mode":
		return fmt.Sprintf("%s: must be %q or %q, got %q", field, LinkedInModeEmail, LinkedInModeWhitelistCrawl, fe.Value())
	case "url":
		return fmt.Sprintf("%s: malformed URL %q", field, fe.Value())
	case "min", "max":
		return fmt.Sprintf("%s: must be %s %s", field, map[string]string{"min": ">=", "max": "<="}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}

// NormalizeAndValidate returns a normalized copy of s together with the
// validation outcome. Callers must not persist the copy unless OK().
func NormalizeAndValidate(s Settings) (Settings, Validation) {
	out := s.Clone()
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		ys := []string{}
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Keywords = trimList(out.Keywords)
	out.Locations = trimList(out.Locations)
	out.LinkedInMode = strings.TrimSpace(out.LinkedInMode)

	sources := make(map[string]bool, len(out.Sources))
	for k, v := range out.Sources {
		sources[strings.ToLower(strings.TrimSpace(k))] = v
	}
	out.Sources = sources

	ApplyDefaults(&out)
	if out.LinkedInCrawl != nil {
		out.LinkedInCrawl.SeedURLs = trimList(out.LinkedInCrawl.SeedURLs)
	}
	if out.IndiaMode {
		ApplyIndiaMode(&out)
	}

	if err := settingsValidator.Struct(out); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			for _, fe := range ves {
				res.addErr("%s", describe(fe))
			}
		} else {
			res.addErr("%v", err)
		}
	}

	// LinkedIn direct crawl requires explicit consent.
	if out.LinkedInMode == LinkedInModeWhitelistCrawl && !out.LinkedInCrawl.Allowed {
		res.addErr("linkedin_crawl.allowed must be true when linkedin_mode=%s", LinkedInModeWhitelistCrawl)
	}
	if out.LinkedInMode == LinkedInModeWhitelistCrawl && out.LinkedInCrawl.Allowed && len(out.LinkedInCrawl.SeedURLs) == 0 {
		res.addErr("linkedin_crawl.seed_urls must list at least one URL when the crawl is allowed")
	}
	if out.LinkedInMode == LinkedInModeEmail && out.SourceEnabled(domain.SourceLinkedIn) &&
		strings.TrimSpace(out.LinkedInEmail.Username) == "" {
		res.addWarn("linkedin is enabled in email mode but linkedin_email.username is empty; the source will fail until it is set.")
	}

	known := map[string]bool{}
	for _, id := range domain.KnownSources {
		known[id] = true
	}
	enabled := 0
	for id, on := range out.Sources {
		if !known[id] {
			res.addWarn("unknown source %q is ignored", id)
			continue
		}
		if on {
			enabled++
		}
	}
	if enabled == 0 {
		res.addWarn("no sources are enabled; scheduled runs will do nothing.")
	}
	if len(out.Keywords) == 0 {
		res.addWarn("keywords is empty; every posting will score 0.")
	}
	if out.SourceEnabled(domain.SourceGreenhouse) && len(out.GreenhouseBoards) == 0 {
		res.addWarn("greenhouse is enabled but greenhouse_boards is empty.")
	}
	if out.SourceEnabled(domain.SourceSmartRecruiters) && len(out.SmartRecruitersBoards) == 0 {
		res.addWarn("smartrecruiters is enabled but smartrecruiters_boards is empty.")
	}
	for _, b := range out.WorkdayBoards {
		if !strings.Contains(strings.ToLower(b.BoardURL), "myworkdayjobs.com") {
			res.addWarn("workday board %q does not look like a myworkdayjobs.com site", b.BoardURL)
		}
	}

	return out, res
}
