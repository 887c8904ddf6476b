// Package catalog resolves the settings and error codes of Lightning device
// models.
//
// A catalog is made of groups. The "common" group applies to every model; a
// model group is overlaid on top of it, so a model entry replaces a common
// entry with the same key. The default catalog is embedded from models.yaml;
// Load reads a replacement file with the same layout.
//
// # Usage
//
//	cat := catalog.Default()
//
//	errs, err := cat.Errors("A740")
//	if err != nil {
//	    log.Fatal(err) // *catalog.UnsupportedModelError
//	}
//	fmt.Println(errs.Format(20)) // Error 20: VPP too low to attempt calibration
//
//	settings, _ := cat.Settings("A740")
//	seg, _ := settings.Get("seg_counts")
//	values, err := seg.Format([]string{"4", "4", "0", "0", "4", "5"})
//
// # Argument Types
//
// Each setting lists the types of the arguments it is written with and of the
// fields it is read back with:
//
//	string         any text
//	number         a decimal number
//	hex:N          exactly N hexadecimal digits, upper-cased
//	range:MIN:MAX  a number between MIN and MAX inclusive
package catalog
