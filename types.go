package bsonmap

// Severity expresses the severity level for cursor issues.
type Severity int

const (
	Ignore Severity = iota
	Warn
	Error
)

// DictionaryRepresentation selects the wire shape of key/value mappings.
type DictionaryRepresentation int

const (
	RepresentationDefault          DictionaryRepresentation = iota // Use the registry default.
	RepresentationDynamic                                          // Document when every key is a safe element name, otherwise ArrayOfArrays.
	RepresentationDocument                                         // {k: v, ...}
	RepresentationArrayOfArrays                                    // [[k, v], ...]
	RepresentationArrayOfDocuments                                 // [{"k": k, "v": v}, ...]
)

func (r DictionaryRepresentation) String() string {
	switch r {
	case RepresentationDynamic:
		return "dynamic"
	case RepresentationDocument:
		return "document"
	case RepresentationArrayOfArrays:
		return "arrayOfArrays"
	case RepresentationArrayOfDocuments:
		return "arrayOfDocuments"
	}
	return "default"
}

// ParseDictionaryRepresentation maps a configuration name onto a representation.
func ParseDictionaryRepresentation(s string) (DictionaryRepresentation, bool) {
	switch s {
	case "", "default":
		return RepresentationDefault, true
	case "dynamic":
		return RepresentationDynamic, true
	case "document":
		return RepresentationDocument, true
	case "arrayOfArrays":
		return RepresentationArrayOfArrays, true
	case "arrayOfDocuments":
		return RepresentationArrayOfDocuments, true
	}
	return RepresentationDefault, false
}

// EncodeOpt bundles encoding options.
type EncodeOpt struct {
	// IDFirst writes the id member before the discriminator and all other members.
	IDFirst bool
}

// DecodeOpt bundles decoding options applied to the cursor.
type DecodeOpt struct {
	OnDuplicate Severity
	MaxDepth    int
}
