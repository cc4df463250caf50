package modelcfg

// Dimension is a pixel size.
type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var aspectRatios = []string{"1:1", "2:3", "3:2", "3:4", "4:3", "9:16", "16:9"}

var dimensions = map[string]Dimension{
	"1:1":  {Width: 1024, Height: 1024},
	"2:3":  {Width: 832, Height: 1248},
	"3:2":  {Width: 1248, Height: 832},
	"3:4":  {Width: 896, Height: 1152},
	"4:3":  {Width: 1152, Height: 896},
	"9:16": {Width: 768, Height: 1344},
	"16:9": {Width: 1344, Height: 768},
}

// AspectRatios lists the accepted aspect ratio labels.
func AspectRatios() []string {
	return append([]string(nil), aspectRatios...)
}

func ValidAspectRatio(ratio string) bool {
	_, ok := dimensions[ratio]
	return ok
}

// Dimensions returns the nominal output size for ratio.
func Dimensions(ratio string) (Dimension, bool) {
	d, ok := dimensions[ratio]
	return d, ok
}

// ValidNumOutputs reports whether n is an accepted output count.
func ValidNumOutputs(n int) bool {
	return n == 1 || n == 2 || n == 4
}
