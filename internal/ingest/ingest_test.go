package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const lendersCSV = "\ufeffFirst_Name, Last Name ,Company,Work Email,Direct Mobile_Phone,personal_email,Title,City,State,Trailing 14 Units\n" +
	" Jane , Doe ,Acme Mortgage, ,(512) 555-0101,jane@home.net,Loan Officer,Austin,TX,12\n" +
	"John,Roe,Beta Lending,john@beta.com,5125550102,,,Dallas,TX,3\n" +
	",,,,,,,,,\n" +
	"Ann,Lee,Gamma Home Loans,,,,,Houston,,\n"

func TestParseCSV(t *testing.T) {
	batch, err := Parse(context.Background(), "Travis County lenders.csv", strings.NewReader(lendersCSV))
	require.NoError(t, err)

	require.Len(t, batch.Records, 3)
	assert.Equal(t, "Travis", batch.County)
	assert.Equal(t, "Austin", batch.City)
	assert.Equal(t, Stats{Total: 3, NeedsEnrichment: 2, Complete: 1}, batch.Stats)

	jane := batch.Records[0]
	assert.NotEmpty(t, jane.ID)
	assert.Equal(t, "Jane", jane.FirstName)
	assert.Equal(t, "Doe", jane.LastName)
	assert.Equal(t, "Acme Mortgage", jane.Company)
	assert.Empty(t, jane.WorkEmail)
	assert.Equal(t, "(512) 555-0101", jane.MobilePhone)
	assert.Equal(t, "jane@home.net", jane.PersonalEmail)
	assert.Equal(t, "Loan Officer", jane.Title)
	assert.Equal(t, "TX", jane.State)
	assert.Equal(t, "12", jane.Trailing14Units)
	assert.Equal(t, "Travis county TX Mortgage Lender,TX Mortgage Lender,Mortgage Lender", jane.Tags)

	ann := batch.Records[2]
	assert.Equal(t, "Mortgage Lender", ann.Tags)

	pending := batch.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "Jane", pending[0].FirstName)
	assert.Equal(t, "Ann", pending[1].FirstName)
}

func TestParseCSV_NoCounty(t *testing.T) {
	batch, err := Parse(context.Background(), "lenders.csv", strings.NewReader(lendersCSV))
	require.NoError(t, err)
	assert.Empty(t, batch.County)
	assert.Equal(t, "TX Mortgage Lender,Mortgage Lender", batch.Records[0].Tags)
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	batch, err := Parse(context.Background(), "x.csv", strings.NewReader("First Name,Last Name,Company\n"))
	require.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.Empty(t, batch.City)
	assert.Equal(t, Stats{}, batch.Stats)
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := Parse(context.Background(), "x.csv", strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, "x.csv", strings.NewReader(lendersCSV))
	assert.Error(t, err)
}

func TestParseFile_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range [][]string{
		{"First Name", "Last Name", "Company", "Mobile Phone", "State"},
		{"Jane", "Doe", "Acme Mortgage", "512-555-0101", "TX"},
	} {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "harris_county.xlsx")
	require.NoError(t, f.Save(path))

	batch, err := ParseFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, batch.Records, 1)
	assert.Equal(t, "Harris", batch.County)
	assert.Equal(t, "512-555-0101", batch.Records[0].MobilePhone)
	assert.Equal(t, "Harris county TX Mortgage Lender,TX Mortgage Lender,Mortgage Lender", batch.Records[0].Tags)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestParseFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Los Angeles County.csv")
	require.NoError(t, os.WriteFile(path, []byte(lendersCSV), 0o644))

	batch, err := ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Los Angeles", batch.County)
	assert.Len(t, batch.Records, 3)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "firstname", NormalizeHeader(" First_Name "))
	assert.Equal(t, "trailing14units", NormalizeHeader("Trailing 14 Units"))
	assert.Equal(t, "directmobilephone", NormalizeHeader("Direct Mobile_Phone"))
}

func TestCountyFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Harris County.csv", "Harris"},
		{"harris county lenders.csv", "Harris"},
		{"LOS ANGELES COUNTY.xlsx", "Los Angeles"},
		{"harris_county.csv", "Harris"},
		{"/tmp/uploads/Travis County.csv", "Travis"},
		{"lenders.csv", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountyFromFilename(tt.name))
		})
	}
}

func TestSeedTags(t *testing.T) {
	assert.Equal(t, "Harris county TX Mortgage Lender,TX Mortgage Lender,Mortgage Lender", SeedTags("Harris", "TX"))
	assert.Equal(t, "TX Mortgage Lender,Mortgage Lender", SeedTags("", "TX"))
	assert.Equal(t, "Mortgage Lender", SeedTags("Harris", ""))
	assert.Equal(t, "Mortgage Lender", SeedTags("", ""))
}
