package metadata

// Relation kinds, named the way Forest Admin names them in the apimap.
const (
	BelongsTo     = "BelongsTo"
	HasOne        = "HasOne"
	HasMany       = "HasMany"
	BelongsToMany = "BelongsToMany"
)

// Relation links a collection to another one.
//
// For BelongsTo, ForeignKey lives on the source table and OwnerKey on the target.
// For HasOne / HasMany, ForeignKey lives on the target table and OwnerKey on the source.
// For BelongsToMany, JoinForeignKey points at the source and JoinTargetKey at the target;
// OwnerKey is the source key and ForeignKey the target key.
type Relation struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Target         string `json:"target"`
	TargetTable    string `json:"target_table"`
	ForeignKey     string `json:"foreign_key"`
	OwnerKey       string `json:"owner_key"`
	JoinTable      string `json:"join_table,omitempty"`
	JoinForeignKey string `json:"join_foreign_key,omitempty"`
	JoinTargetKey  string `json:"join_target_key,omitempty"`
}

func (r *Relation) IsToMany() bool {
	return r.Kind == HasMany || r.Kind == BelongsToMany
}

func (r *Relation) IsToOne() bool {
	return r.Kind == BelongsTo || r.Kind == HasOne
}
