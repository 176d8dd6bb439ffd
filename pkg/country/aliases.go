package country

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type alias struct {
	name string
	code string
}

// aliasList keeps regional grouping; suggestion order follows it.
var aliasList = []alias{
	// North America
	{"united states", "USA"}, {"usa", "USA"}, {"us", "USA"}, {"america", "USA"}, {"united states of america", "USA"},
	{"canada", "CAN"}, {"ca", "CAN"},
	{"mexico", "MEX"}, {"mx", "MEX"},

	// Europe
	{"united kingdom", "GBR"}, {"uk", "GBR"}, {"britain", "GBR"}, {"england", "GBR"}, {"great britain", "GBR"},
	{"germany", "DEU"}, {"de", "DEU"}, {"deutschland", "DEU"},
	{"france", "FRA"}, {"fr", "FRA"},
	{"spain", "ESP"}, {"es", "ESP"},
	{"italy", "ITA"}, {"it", "ITA"},
	{"netherlands", "NLD"}, {"nl", "NLD"}, {"holland", "NLD"},
	{"belgium", "BEL"}, {"be", "BEL"},
	{"switzerland", "CHE"}, {"ch", "CHE"}, {"swiss", "CHE"},
	{"austria", "AUT"}, {"at", "AUT"},
	{"poland", "POL"}, {"pl", "POL"},
	{"portugal", "PRT"}, {"pt", "PRT"},
	{"ireland", "IRL"}, {"ie", "IRL"},
	{"sweden", "SWE"}, {"se", "SWE"},
	{"norway", "NOR"}, {"no", "NOR"},
	{"denmark", "DNK"}, {"dk", "DNK"},
	{"finland", "FIN"}, {"fi", "FIN"},
	{"greece", "GRC"}, {"gr", "GRC"},

	// Oceania
	{"australia", "AUS"}, {"au", "AUS"},
	{"new zealand", "NZL"}, {"nz", "NZL"},

	// Asia
	{"india", "IND"}, {"in", "IND"},
	{"china", "CHN"}, {"cn", "CHN"},
	{"japan", "JPN"}, {"jp", "JPN"},
	{"south korea", "KOR"}, {"korea", "KOR"}, {"kr", "KOR"},
	{"philippines", "PHL"}, {"ph", "PHL"},
	{"singapore", "SGP"}, {"sg", "SGP"},
	{"malaysia", "MYS"}, {"my", "MYS"},
	{"thailand", "THA"}, {"th", "THA"},
	{"vietnam", "VNM"}, {"vn", "VNM"},
	{"indonesia", "IDN"}, {"id", "IDN"},
	{"pakistan", "PAK"}, {"pk", "PAK"},
	{"bangladesh", "BGD"}, {"bd", "BGD"},
	{"united arab emirates", "ARE"}, {"uae", "ARE"}, {"dubai", "ARE"},
	{"saudi arabia", "SAU"}, {"sa", "SAU"},
	{"israel", "ISR"}, {"il", "ISR"},
	{"turkey", "TUR"}, {"tr", "TUR"},

	// Africa
	{"nigeria", "NGA"}, {"ng", "NGA"},
	{"south africa", "ZAF"}, {"za", "ZAF"},
	{"egypt", "EGY"}, {"eg", "EGY"},
	{"kenya", "KEN"}, {"ke", "KEN"},
	{"ghana", "GHA"}, {"gh", "GHA"},
	{"ethiopia", "ETH"}, {"et", "ETH"},
	{"morocco", "MAR"}, {"ma", "MAR"},

	// South America
	{"brazil", "BRA"}, {"br", "BRA"},
	{"argentina", "ARG"}, {"ar", "ARG"},
	{"colombia", "COL"}, {"co", "COL"},
	{"chile", "CHL"}, {"cl", "CHL"},
	{"peru", "PER"}, {"pe", "PER"},
	{"venezuela", "VEN"}, {"ve", "VEN"},
}

var (
	// aliases maps lowercase names, abbreviations and ISO2 codes to ISO3.
	aliases = orderedmap.New[string, string](orderedmap.WithCapacity[string, string](len(aliasList)))
	// displayNames maps ISO3 to the first (canonical) name listed for it.
	displayNames = map[string]string{}
	// aliasNames lists alias keys in table order, for fuzzy matching.
	aliasNames = make([]string, 0, len(aliasList))
)

func init() {
	for _, a := range aliasList {
		aliases.Set(a.name, a.code)
		aliasNames = append(aliasNames, a.name)
		if _, ok := displayNames[a.code]; !ok {
			displayNames[a.code] = a.name
		}
	}
}
