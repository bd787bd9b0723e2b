package consts

// Default header synonyms for surveillance extracts. Order matters:
// resolution walks each list top to bottom and the first case-insensitive
// match in the table header wins. New spellings observed in the field are
// appended, never inserted, so existing datasets keep resolving the same
// way.

const ColumnSynonymVersion = 3

var UnitColumnSynonyms = []string{
	"ward",
	"ward_name",
	"admin_ward",
	"unit",
	"unit_id",
	"lga",
	"area",
}

var TestedColumnSynonyms = []string{
	"tested",
	"num_tested",
	"total_tested",
	"rdt_tested",
	"tests",
	"tested_total",
}

var PositiveColumnSynonyms = []string{
	"positive",
	"num_positive",
	"total_positive",
	"rdt_positive",
	"confirmed",
	"positives",
}

var AttendanceColumnSynonyms = []string{
	"attendance",
	"opd_attendance",
	"total_attendance",
	"all_cause_attendance",
}

var PeriodColumnSynonyms = []string{
	"period",
	"month",
	"reporting_period",
	"date",
	"year_month",
}

var AgeGroupColumnSynonyms = []string{
	"age_group",
	"agegroup",
	"age_band",
	"age",
}

var MethodColumnSynonyms = []string{
	"method",
	"test_method",
	"test_type",
	"diagnostic",
}
