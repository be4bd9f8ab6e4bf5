package testutil

// WithStandardRegistryData adds the standard test dataset: two packages
// with a mix of stable, prerelease, and yanked versions plus file rows.
func (b *Builder) WithStandardRegistryData() *Builder {
	return b.
		WithPackage("math", "linalg",
			Description("linear algebra primitives"),
			Version("1.0.0",
				File("lib.ua", 120, "text/uiua"),
				File("readme.md", 80, "text/markdown")),
			Version("1.1.0",
				File("lib.ua", 140, "text/uiua"),
				File("docs/usage.md", 96, "text/markdown"),
				BinaryFile("bench/data.bin", 4096, "application/octet-stream")),
			Version("1.2.0", Yanked(),
				File("lib.ua", 150, "text/uiua")),
			Version("2.0.0-rc.1",
				File("lib.ua", 200, "text/uiua"))).
		WithPackage("tools", "fmt",
			Description("source formatter"),
			Version("0.3.0",
				File("main.ua", 300, "text/uiua")))
}
