package pipes

import (
	"strings"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
)

var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_us": monday.LocaleEnUS,
	"en_gb": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"de_de": monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"fr_fr": monday.LocaleFrFR,
	"fr_ca": monday.LocaleFrCA,
	"es":    monday.LocaleEsES,
	"es_es": monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"it_it": monday.LocaleItIT,
	"pt":    monday.LocalePtPT,
	"pt_pt": monday.LocalePtPT,
	"pt_br": monday.LocalePtBR,
	"nl":    monday.LocaleNlNL,
	"nl_be": monday.LocaleNlBE,
	"ru":    monday.LocaleRuRU,
	"pl":    monday.LocalePlPL,
	"sv":    monday.LocaleSvSE,
	"da":    monday.LocaleDaDK,
	"fi":    monday.LocaleFiFI,
	"ja":    monday.LocaleJaJP,
	"ja_jp": monday.LocaleJaJP,
	"zh":    monday.LocaleZhCN,
	"zh_cn": monday.LocaleZhCN,
	"zh_tw": monday.LocaleZhTW,
	"ko":    monday.LocaleKoKR,
}

// normalizeLocale turns "en-GB", "en_GB" and "EN_gb" into "en_gb".
func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(locale, "-", "_"))
}

// mondayLocale maps a locale string to a monday.Locale, falling back to the
// language alone and then to US English.
func mondayLocale(locale string) monday.Locale {
	key := normalizeLocale(locale)
	if loc, ok := mondayLocales[key]; ok {
		return loc
	}
	if lang, _, found := strings.Cut(key, "_"); found {
		if loc, ok := mondayLocales[lang]; ok {
			return loc
		}
	}
	return monday.LocaleEnUS
}

// languageTag parses a locale for x/text.
func languageTag(locale string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(locale, "_", "-"))
}

// dayFirst reports whether dates in locale are conventionally written with
// the day before the month.
func dayFirst(locale string) bool {
	key := normalizeLocale(locale)
	return key != "en" && key != "en_us" && !strings.HasPrefix(key, "ja") &&
		!strings.HasPrefix(key, "zh") && !strings.HasPrefix(key, "ko")
}

// dateLayout returns the time layout for a named style. Unknown styles are
// treated as a Go layout.
func dateLayout(style string, locale monday.Locale) string {
	switch style {
	case "short":
		switch locale {
		case monday.LocaleEnUS:
			return "1/2/06"
		case monday.LocaleDeDE:
			return "02.01.06"
		case monday.LocaleJaJP:
			return "06/01/02"
		case monday.LocaleZhCN, monday.LocaleZhTW:
			return "06/1/2"
		}
		return "02/01/06"
	case "medium":
		switch locale {
		case monday.LocaleEnUS:
			return "Jan 2, 2006"
		case monday.LocaleDeDE:
			return "2. Jan. 2006"
		case monday.LocaleJaJP, monday.LocaleZhCN, monday.LocaleZhTW:
			return "2006年1月2日"
		}
		return "2 Jan 2006"
	case "long":
		switch locale {
		case monday.LocaleEnUS:
			return "January 2, 2006"
		case monday.LocaleDeDE:
			return "2. January 2006"
		case monday.LocaleEsES:
			return "2 de January de 2006"
		case monday.LocaleJaJP, monday.LocaleZhCN, monday.LocaleZhTW:
			return "2006年1月2日"
		}
		return "2 January 2006"
	case "full":
		switch locale {
		case monday.LocaleEnUS:
			return "Monday, January 2, 2006"
		case monday.LocaleDeDE:
			return "Monday, 2. January 2006"
		case monday.LocaleFrFR, monday.LocaleFrCA:
			return "Monday 2 January 2006"
		}
		return "Monday, 2 January 2006"
	case "iso":
		return "2006-01-02"
	}
	return style
}
