// Package shared groups helpers used by more than one package.
//
// The testutil subpackage holds the test-only pieces:
//
//	- BufferedSlogHandler and NewTestLogger for asserting on log output
//	- rental fixtures (Rental, RentalCSV, WriteRentalCSV) that write a
//	  dataset file in the same column layout as the production CSV
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    path := testutil.WriteRentalCSV(t, testutil.Rental(1, "2012-06-01", 8, 100, 30))
//	    logger, logs := testutil.NewTestLogger(t)
//	    ...
//	}
package shared
