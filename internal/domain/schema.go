package domain

import "strings"

// ColumnKind is the storage type of a column.
type ColumnKind int

const (
	KindReal ColumnKind = iota
	KindInteger
	KindText
)

func (k ColumnKind) String() string {
	switch k {
	case KindReal:
		return "REAL"
	case KindInteger:
		return "INTEGER"
	case KindText:
		return "TEXT"
	default:
		return "UNKNOWN"
	}
}

// Column maps one source field onto one table column.
type Column struct {
	Name  string
	Field string
	Kind  ColumnKind
}

// TableSchema describes where one category (or subcategory) is stored.
// Positional tables ignore field names and capture the first N values in
// order into the declared text columns.
type TableSchema struct {
	Table       string
	Category    string
	Subcategory string
	Columns     []Column
	Positional  bool
}

// Alias is the single-word name used to address the table in queries, e.g.
// "Energiemonitor_Waermemenge".
func (s TableSchema) Alias() string {
	if s.Subcategory == "" {
		return s.Category
	}
	return s.Category + "_" + asciiFold(s.Subcategory)
}

const (
	CategoryTemperaturen   = "Temperaturen"
	CategoryEingaenge      = "Eingänge"
	CategoryAusgaenge      = "Ausgänge"
	CategoryAbschaltungen  = "Abschaltungen"
	CategoryAnlagenstatus  = "Anlagenstatus"
	CategoryEnergiemonitor = "Energiemonitor"

	SubcategoryWaermemenge       = "Wärmemenge"
	SubcategoryLeistungsaufnahme = "Leistungsaufnahme"
)

// MultiSubcategoryCategory is the one category whose children are stored as
// separate subcategories.
const MultiSubcategoryCategory = CategoryEnergiemonitor

// AbschaltungenSlots is the number of shutdown entries kept per row.
const AbschaltungenSlots = 5

func realCol(name, field string) Column { return Column{Name: name, Field: field, Kind: KindReal} }
func textCol(name, field string) Column { return Column{Name: name, Field: field, Kind: KindText} }

func energyColumns() []Column {
	return []Column{
		realCol("heizung", "Heizung"),
		realCol("warmwasser", "Warmwasser"),
		realCol("kuehlung", "Kühlung"),
		realCol("gesamt", "Gesamt"),
	}
}

// Tables is the registry of every persisted table, in save order.
var Tables = []TableSchema{
	{
		Table:    "temperaturen",
		Category: CategoryTemperaturen,
		Columns: []Column{
			realCol("vorlauf", "Vorlauf"),
			realCol("ruecklauf", "Rücklauf"),
			realCol("ruecklauf_soll", "Rückl.-Soll"),
			realCol("heissgas", "Heissgas"),
			realCol("aussentemperatur", "Außentemperatur"),
			realCol("mitteltemperatur", "Mitteltemperatur"),
			realCol("warmwasser_ist", "Warmwasser-Ist"),
			realCol("warmwasser_soll", "Warmwasser-Soll"),
			realCol("waermequelle_ein", "Wärmequelle-Ein"),
			realCol("waermequelle_aus", "Wärmequelle-Aus"),
			realCol("mischkreis1_vorlauf", "Mischkreis1-Vorlauf"),
			realCol("mischkreis1_vl_soll", "Mischkreis1 VL-Soll"),
			realCol("vorlauf_max", "Vorlauf max."),
			realCol("ansaug_vd", "Ansaug VD"),
			realCol("vd_heizung", "VD-Heizung"),
			realCol("ueberhitzung", "Überhitzung"),
		},
	},
	{
		Table:    "eingaenge",
		Category: CategoryEingaenge,
		Columns: []Column{
			textCol("asd", "ASD"),
			textCol("evu", "EVU"),
			textCol("hd_status", "HD"),
			textCol("mot", "MOT"),
			textCol("pex", "PEX"),
			realCol("hd_bar", "HD"),
			realCol("nd_bar", "ND"),
			realCol("durchfluss", "Durchfluss"),
		},
	},
	{
		Table:    "ausgaenge",
		Category: CategoryAusgaenge,
		Columns: []Column{
			textCol("bup", "BUP"),
			textCol("fup_1", "FUP 1"),
			textCol("hup", "HUP"),
			textCol("mischer_1_auf", "Mischer 1 Auf"),
			textCol("mischer_1_zu", "Mischer 1 Zu"),
			textCol("ventil_bosup", "Ventil.-BOSUP"),
			textCol("verdichter", "Verdichter"),
			textCol("zip", "ZIP"),
			textCol("zup", "ZUP"),
			textCol("zwe_1", "ZWE 1"),
			textCol("zwe_2_sst", "ZWE 2 - SST"),
			textCol("vd_heizung", "VD-Heizung"),
			realCol("freq_sollwert", "Freq. Sollwert"),
			realCol("freq_aktuell", "Freq. aktuell"),
			realCol("ventil_bosup_percent", "Ventil.-BOSUP"),
			realCol("hup_percent", "HUP"),
		},
	},
	{
		Table:      "abschaltungen",
		Category:   CategoryAbschaltungen,
		Positional: true,
		Columns: []Column{
			textCol("abschaltung_1", ""),
			textCol("abschaltung_2", ""),
			textCol("abschaltung_3", ""),
			textCol("abschaltung_4", ""),
			textCol("abschaltung_5", ""),
		},
	},
	{
		Table:    "anlagenstatus",
		Category: CategoryAnlagenstatus,
		Columns: []Column{
			{Name: "bivalenz_stufe", Field: "Bivalenz Stufe", Kind: KindInteger},
			realCol("heizleistung_ist", "Heizleistung Ist"),
			realCol("leistungsaufnahme", "Leistungsaufnahme"),
		},
	},
	{
		Table:       "energiemonitor_waermemenge",
		Category:    CategoryEnergiemonitor,
		Subcategory: SubcategoryWaermemenge,
		Columns:     energyColumns(),
	},
	{
		Table:       "energiemonitor_leistungsaufnahme",
		Category:    CategoryEnergiemonitor,
		Subcategory: SubcategoryLeistungsaufnahme,
		Columns:     energyColumns(),
	},
}

// LookupTable resolves a table name or alias to its schema.
func LookupTable(name string) (TableSchema, bool) {
	for _, t := range Tables {
		if t.Table == name || t.Alias() == name {
			return t, true
		}
	}
	return TableSchema{}, false
}

// TableNames lists every table in registry order.
func TableNames() []string {
	out := make([]string, len(Tables))
	for i, t := range Tables {
		out[i] = t.Table
	}
	return out
}

var umlautFolder = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue", "ß", "ss",
)

func asciiFold(s string) string { return umlautFolder.Replace(s) }
