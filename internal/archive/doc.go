// Package archive packages a job's output files into a single zip for
// download.
package archive
