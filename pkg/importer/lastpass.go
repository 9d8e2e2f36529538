package importer

// LastPassParser parses LastPass CSV export files.
// LastPass CSV format: url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

// LastPass CSV column names (header-based parsing).
const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColTOTP     = "totp"
	lpColExtra    = "extra"
	lpColName     = "name"
)

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data into login item drafts.
func (p *LastPassParser) Parse(data []byte) (*Result, error) {
	colIndex, rows, warnings, err := readRows(data, []string{lpColName})
	if err != nil {
		return nil, err
	}

	result := &Result{Warnings: warnings}
	for _, row := range rows {
		name := column(row, colIndex, lpColName)
		if name == "" {
			result.Skipped = append(result.Skipped, SkippedRow{Reason: "empty name"})
			continue
		}

		url := column(row, colIndex, lpColURL)
		// LastPass writes this placeholder for secure notes.
		if url == "http://sn" {
			result.Skipped = append(result.Skipped, SkippedRow{Name: name, Reason: "secure note, not a login"})
			continue
		}

		result.Items = append(result.Items, loginItem(name, map[string]string{
			"username":   column(row, colIndex, lpColUsername),
			"password":   column(row, colIndex, lpColPassword),
			"totpSecret": column(row, colIndex, lpColTOTP),
			"website":    url,
		}))
	}

	DeduplicateLabels(result.Items)
	return result, nil
}
