// Package domain models KNMI daily weather observations and the feature
// encoding that turns them into an LSTM input window.
//
// # Data Source
//
// Observations come from the KNMI daily data endpoint
// (https://www.daggegevens.knmi.nl/klimatologie/daggegevens). A request names
// one station and an inclusive date range:
//
//	?stns=279&start=20221130&end=20231130
//
// The response is plain text: a metadata block of lines prefixed with "#",
// whose last line is the column header, followed by one comma-separated row
// per day in ascending date order. Values are right-aligned with spaces.
//
// # Retained Columns
//
//	YYYYMMDD  date
//	UG        daily mean relative humidity (%)
//	PX        maximum hourly sea level pressure (0.1 hPa)
//	PN        minimum hourly sea level pressure (0.1 hPa)
//	RH        daily precipitation amount (0.1 mm, -1 for <0.05 mm)
//	Q         global radiation (J/cm2)
//	FG        daily mean wind speed (0.1 m/s)
//	DR        precipitation duration (0.1 hour)
//	TG        daily mean temperature (0.1 degrees Celsius)
//
// Only TG is converted (divided by 10). The other columns stay in feed units
// because the pretrained model saw them that way.
//
// # Missing Values
//
// An empty cell is a missing value. A row with any missing retained value is
// dropped before dates are parsed, so the encoded table can hold fewer than
// 365 rows.
//
// # Feature Layout
//
//	UG, PX, PN, RH, Q, FG, DR, TG, month_<m>...
//
// One indicator column per calendar month present in the retained rows,
// ascending by month number. A window that spans a different set of months
// than the training window changes the feature dimension, which the model
// rejects.
//
// # Standardization
//
// Means and population standard deviations are fitted on the matrix being
// transformed, not taken from training time. This reproduces the behavior
// the model was deployed with; it is a compatibility quirk. Columns with zero
// variance keep a scale of 1 and therefore become all zeros.
//
// # Window
//
// The model input is a zero-filled (rows-15, 15, D) tensor whose final slot
// holds the last 15 feature rows. Only the output for that slot is a
// forecast.
package domain
