// Package types provides type definitions for structured data used throughout the relief-intake system.
package types

import (
	"fmt"
	"strings"
)

// Category is a top-level resource category from the closed taxonomy.
type Category string

// Category constants
const (
	CategorySkills          Category = "SKILLS"
	CategoryFuel            Category = "FUEL"
	CategoryFood            Category = "FOOD"
	CategoryWater           Category = "WATER"
	CategoryMedicalSupplies Category = "MEDICAL_SUPPLIES"
	CategoryShelter         Category = "SHELTER"
	CategoryTransport       Category = "TRANSPORT"
	CategoryEquipment       Category = "EQUIPMENT"
	CategoryCommunication   Category = "COMMUNICATION"
	CategoryOther           Category = "OTHER"
)

// Subcategory refines a Category. Some values (OTHER, EQUIPMENT) appear under
// more than one category.
type Subcategory string

// Subcategory constants
const (
	SubcategoryMedical      Subcategory = "MEDICAL"
	SubcategoryConstruction Subcategory = "CONSTRUCTION"
	SubcategoryIT           Subcategory = "IT"
	SubcategoryLanguage     Subcategory = "LANGUAGE"
	SubcategoryMechanic     Subcategory = "MECHANIC"
	SubcategoryOther        Subcategory = "OTHER"

	SubcategoryDiesel    Subcategory = "DIESEL"
	SubcategoryGasoline  Subcategory = "GASOLINE"
	SubcategoryPropane   Subcategory = "PROPANE"
	SubcategoryBatteries Subcategory = "BATTERIES"

	SubcategoryNonPerishable Subcategory = "NON_PERISHABLE"
	SubcategoryPerishable    Subcategory = "PERISHABLE"
	SubcategoryBabyFood      Subcategory = "BABY_FOOD"
	SubcategoryPetFood       Subcategory = "PET_FOOD"

	SubcategoryBottled             Subcategory = "BOTTLED"
	SubcategoryFilters             Subcategory = "FILTERS"
	SubcategoryPurificationTablets Subcategory = "PURIFICATION_TABLETS"

	SubcategoryFirstAid   Subcategory = "FIRST_AID"
	SubcategoryMedication Subcategory = "MEDICATION"
	SubcategoryEquipment  Subcategory = "EQUIPMENT"

	SubcategoryTents    Subcategory = "TENTS"
	SubcategoryBlankets Subcategory = "BLANKETS"

	SubcategoryVehicles   Subcategory = "VEHICLES"
	SubcategoryBoats      Subcategory = "BOATS"
	SubcategoryFuelTrucks Subcategory = "FUEL_TRUCKS"

	SubcategoryGenerators     Subcategory = "GENERATORS"
	SubcategoryTools          Subcategory = "TOOLS"
	SubcategoryProtectiveGear Subcategory = "PROTECTIVE_GEAR"

	SubcategoryRadios     Subcategory = "RADIOS"
	SubcategorySatphones  Subcategory = "SATPHONES"
	SubcategoryPowerBanks Subcategory = "POWER_BANKS"

	SubcategoryUnknown Subcategory = "UNKNOWN"
)

// UserType classifies who submitted a report.
type UserType string

// UserType constants
const (
	UserTypeCivilian         UserType = "CIVILIAN"
	UserTypeNGO              UserType = "NGO"
	UserTypeGovernmentAgency UserType = "GOVERNMENT_AGENCY"
	UserTypeCorporateEntity  UserType = "CORPORATE_ENTITY"
	UserTypeLocalAuthority   UserType = "LOCAL_AUTHORITY"
)

var categoryOrder = []Category{
	CategorySkills,
	CategoryFuel,
	CategoryFood,
	CategoryWater,
	CategoryMedicalSupplies,
	CategoryShelter,
	CategoryTransport,
	CategoryEquipment,
	CategoryCommunication,
	CategoryOther,
}

var subcategoriesByCategory = map[Category][]Subcategory{
	CategorySkills:          {SubcategoryMedical, SubcategoryConstruction, SubcategoryIT, SubcategoryLanguage, SubcategoryMechanic, SubcategoryOther},
	CategoryFuel:            {SubcategoryDiesel, SubcategoryGasoline, SubcategoryPropane, SubcategoryBatteries},
	CategoryFood:            {SubcategoryNonPerishable, SubcategoryPerishable, SubcategoryBabyFood, SubcategoryPetFood},
	CategoryWater:           {SubcategoryBottled, SubcategoryFilters, SubcategoryPurificationTablets},
	CategoryMedicalSupplies: {SubcategoryFirstAid, SubcategoryMedication, SubcategoryEquipment},
	CategoryShelter:         {SubcategoryTents, SubcategoryBlankets},
	CategoryTransport:       {SubcategoryVehicles, SubcategoryBoats, SubcategoryFuelTrucks},
	CategoryEquipment:       {SubcategoryGenerators, SubcategoryTools, SubcategoryProtectiveGear},
	CategoryCommunication:   {SubcategoryRadios, SubcategorySatphones, SubcategoryPowerBanks},
	CategoryOther:           {SubcategoryUnknown},
}

var userTypeOrder = []UserType{
	UserTypeCivilian,
	UserTypeNGO,
	UserTypeGovernmentAgency,
	UserTypeCorporateEntity,
	UserTypeLocalAuthority,
}

// Categories returns every category in taxonomy order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Subcategories returns every distinct subcategory in taxonomy order.
func Subcategories() []Subcategory {
	seen := make(map[Subcategory]bool)
	var out []Subcategory
	for _, c := range categoryOrder {
		for _, s := range subcategoriesByCategory[c] {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// SubcategoriesOf returns the subcategories listed under a category.
func SubcategoriesOf(c Category) []Subcategory {
	subs := subcategoriesByCategory[c]
	out := make([]Subcategory, len(subs))
	copy(out, subs)
	return out
}

// UserTypes returns every user type in taxonomy order.
func UserTypes() []UserType {
	out := make([]UserType, len(userTypeOrder))
	copy(out, userTypeOrder)
	return out
}

// Valid reports whether c is a member of the closed taxonomy.
func (c Category) Valid() bool {
	_, ok := subcategoriesByCategory[c]
	return ok
}

// Valid reports whether s appears anywhere in the taxonomy.
func (s Subcategory) Valid() bool {
	for _, subs := range subcategoriesByCategory {
		for _, known := range subs {
			if known == s {
				return true
			}
		}
	}
	return false
}

// Valid reports whether u is a known user type.
func (u UserType) Valid() bool {
	for _, known := range userTypeOrder {
		if known == u {
			return true
		}
	}
	return false
}

// SubcategoryBelongsTo reports whether s is listed under c.
func SubcategoryBelongsTo(s Subcategory, c Category) bool {
	for _, known := range subcategoriesByCategory[c] {
		if known == s {
			return true
		}
	}
	return false
}

// ParseCategory resolves a case-insensitive category name. Unknown values are
// rejected rather than mapped to OTHER.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid category %q", s)
	}
	return c, nil
}

// ParseSubcategory resolves a case-insensitive subcategory name.
func ParseSubcategory(s string) (Subcategory, error) {
	sub := Subcategory(strings.ToUpper(strings.TrimSpace(s)))
	if !sub.Valid() {
		return "", fmt.Errorf("invalid subcategory %q", s)
	}
	return sub, nil
}

// ParseUserType resolves a case-insensitive user type name.
func ParseUserType(s string) (UserType, error) {
	u := UserType(strings.ToUpper(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("invalid user_type %q", s)
	}
	return u, nil
}
