package fusion

import (
	"fmt"
	"strings"
)

// ObjectClass клас перешкоди із закритого переліку категорій
type ObjectClass string

const (
	ClassBicycle     ObjectClass = "bicycle"
	ClassBus         ObjectClass = "bus"
	ClassCar         ObjectClass = "car"
	ClassDog         ObjectClass = "dog"
	ClassFallenTree  ObjectClass = "fallen_tree"
	ClassHorse       ObjectClass = "horse"
	ClassMotorbike   ObjectClass = "motorbike"
	ClassPerson      ObjectClass = "person"
	ClassRock        ObjectClass = "rock"
	ClassRockCluster ObjectClass = "rock_cluster"
	ClassTruck       ObjectClass = "truck"
)

// categoryTable відповідність ідентифікатора категорії (з 1) до класу
var categoryTable = map[int]ObjectClass{
	1:  ClassBicycle,
	2:  ClassBus,
	3:  ClassCar,
	4:  ClassDog,
	5:  ClassFallenTree,
	6:  ClassHorse,
	7:  ClassMotorbike,
	8:  ClassPerson,
	9:  ClassRock,
	10: ClassRockCluster,
	11: ClassTruck,
}

// ObjectClasses повертає всі класи в порядку ідентифікаторів категорій
func ObjectClasses() []ObjectClass {
	classes := make([]ObjectClass, 0, len(categoryTable))
	for id := 1; id <= len(categoryTable); id++ {
		classes = append(classes, categoryTable[id])
	}
	return classes
}

// ParseObjectClass перевіряє назву класу
func ParseObjectClass(name string) (ObjectClass, error) {
	class := ObjectClass(strings.ToLower(strings.TrimSpace(name)))
	if !class.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownObjectClass, name)
	}
	return class, nil
}

// ObjectClassFromCategoryID повертає клас за ідентифікатором категорії
func ObjectClassFromCategoryID(id int) (ObjectClass, error) {
	class, ok := categoryTable[id]
	if !ok {
		return "", fmt.Errorf("%w: category id %d", ErrUnknownObjectClass, id)
	}
	return class, nil
}

// Valid повідомляє, чи належить клас до переліку
func (c ObjectClass) Valid() bool {
	for _, class := range categoryTable {
		if c == class {
			return true
		}
	}
	return false
}
