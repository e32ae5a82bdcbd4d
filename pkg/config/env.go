package config

// Environment names
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsDevelopment reports whether the service runs with development conveniences
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == EnvDevelopment
}

// IsProductionLike reports whether strict configuration rules apply
func (s ServerConfig) IsProductionLike() bool {
	return productionLike(s.Environment)
}

func productionLike(env string) bool {
	return env == EnvStaging || env == EnvProduction
}
