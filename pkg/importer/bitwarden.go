package importer

// BitwardenParser parses Bitwarden CSV export files.
// Bitwarden CSV format:
// folder,favorite,type,name,notes,fields,reprompt,login_uri,login_username,login_password,login_totp
type BitwardenParser struct{}

// Bitwarden CSV column names (header-based parsing).
const (
	bwColType     = "type"
	bwColName     = "name"
	bwColURI      = "login_uri"
	bwColUsername = "login_username"
	bwColPassword = "login_password"
	bwColTOTP     = "login_totp"
)

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden CSV data into login item drafts.
func (p *BitwardenParser) Parse(data []byte) (*Result, error) {
	colIndex, rows, warnings, err := readRows(data, []string{bwColName, bwColType})
	if err != nil {
		return nil, err
	}

	result := &Result{Warnings: warnings}
	for _, row := range rows {
		name := column(row, colIndex, bwColName)
		if name == "" {
			result.Skipped = append(result.Skipped, SkippedRow{Reason: "empty name"})
			continue
		}

		if kind := column(row, colIndex, bwColType); kind != "login" {
			result.Skipped = append(result.Skipped, SkippedRow{Name: name, Reason: "type " + kind + " is not a login"})
			continue
		}

		result.Items = append(result.Items, loginItem(name, map[string]string{
			"username":   column(row, colIndex, bwColUsername),
			"password":   column(row, colIndex, bwColPassword),
			"totpSecret": column(row, colIndex, bwColTOTP),
			"website":    column(row, colIndex, bwColURI),
		}))
	}

	DeduplicateLabels(result.Items)
	return result, nil
}
