package ports

// Linker makes a path in an output location mirror a member of a cache entry.
//
//go:generate mockgen -source=linker.go -destination=mocks/mock_linker.go -package=mocks
type Linker interface {
	// Name identifies the strategy in restore records and logs.
	Name() string

	// Mirror makes dst reflect src. tmp is an unused path on the same file system as dst;
	// implementations build the mirror there and rename it onto dst so that dst is
	// replaced in a single step.
	Mirror(src, dst, tmp string) error
}
