package writer

import "l10nkit/internal/resource"

const defaultPluralForms = "nplurals=2; plural=(n!=1);"

// pluralForms maps a language code to its gettext Plural-Forms expression.
var pluralForms = map[string]string{
	"ar": "nplurals=6; plural=(n==0 ? 0 : n==1 ? 1 : n==2 ? 2 : n%100>=3 && n%100<=10 ? 3 : n%100>=11 ? 4 : 5);",
	"be": "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);",
	"cs": "nplurals=3; plural=(n==1) ? 0 : (n>=2 && n<=4) ? 1 : 2;",
	"cy": "nplurals=4; plural=(n==1) ? 0 : (n==2) ? 1 : (n != 8 && n != 11) ? 2 : 3;",
	"fr": "nplurals=2; plural=(n > 1);",
	"ga": "nplurals=5; plural=n==1 ? 0 : n==2 ? 1 : (n>2 && n<7) ? 2 :(n>6 && n<11) ? 3 : 4;",
	"hr": "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);",
	"id": "nplurals=1; plural=0;",
	"ja": "nplurals=1; plural=0;",
	"ko": "nplurals=1; plural=0;",
	"lt": "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && (n%100<10 || n%100>=20) ? 1 : 2);",
	"lv": "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n != 0 ? 1 : 2);",
	"mk": "nplurals=2; plural= n==1 || n%10==1 ? 0 : 1;",
	"pl": "nplurals=3; plural=(n==1 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);",
	"ro": "nplurals=3; plural=(n==1 ? 0 : (n==0 || (n%100 > 0 && n%100 < 20)) ? 1 : 2);",
	"ru": "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);",
	"sk": "nplurals=3; plural=(n==1) ? 0 : (n>=2 && n<=4) ? 1 : 2;",
	"sl": "nplurals=4; plural=(n%100==1 ? 0 : n%100==2 ? 1 : n%100==3 || n%100==4 ? 2 : 3);",
	"th": "nplurals=1; plural=0;",
	"tr": "nplurals=2; plural=(n > 1);",
	"uk": "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);",
	"vi": "nplurals=1; plural=0;",
	"zh": "nplurals=1; plural=0;",

	"pt-BR": "nplurals=2; plural=(n > 1);",
}

// PluralForms returns the Plural-Forms header value for loc.
func PluralForms(loc resource.LocaleID) string {
	if expr, ok := pluralForms[string(loc)]; ok {
		return expr
	}
	if expr, ok := pluralForms[loc.Language()]; ok {
		return expr
	}
	return defaultPluralForms
}
