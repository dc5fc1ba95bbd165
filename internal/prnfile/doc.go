// Package prnfile reads tab-delimited PRN instrument logs and turns their
// unsent data rows into write lines.
//
// A PRN file starts with a header row. Columns 0-2 hold the record id, date
// and time; every column from index 3 on is a field. A later row whose second
// column is "Date" starts a new header block.
package prnfile
