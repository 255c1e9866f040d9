package popularity

// seedVocabulary is used when no index has been persisted yet. Order matters:
// it is the tie-break order for equal scores.
var seedVocabulary = []Entry{
	{Name: "Milk", Count: 10},
	{Name: "Bread", Count: 10},
	{Name: "Eggs", Count: 9},
	{Name: "Butter", Count: 8},
	{Name: "Cheese", Count: 8},
	{Name: "Sour cream", Count: 6},
	{Name: "Kefir", Count: 6},
	{Name: "Yogurt", Count: 6},
	{Name: "Chicken", Count: 7},
	{Name: "Pork", Count: 5},
	{Name: "Beef", Count: 5},
	{Name: "Fish", Count: 5},
	{Name: "Sausage", Count: 5},
	{Name: "Potatoes", Count: 8},
	{Name: "Carrots", Count: 6},
	{Name: "Onions", Count: 7},
	{Name: "Garlic", Count: 5},
	{Name: "Tomatoes", Count: 7},
	{Name: "Cucumbers", Count: 6},
	{Name: "Cabbage", Count: 4},
	{Name: "Peppers", Count: 4},
	{Name: "Mushrooms", Count: 4},
	{Name: "Lettuce", Count: 4},
	{Name: "Herbs", Count: 3},
	{Name: "Apples", Count: 7},
	{Name: "Bananas", Count: 7},
	{Name: "Oranges", Count: 5},
	{Name: "Lemons", Count: 4},
	{Name: "Grapes", Count: 3},
	{Name: "Rice", Count: 6},
	{Name: "Buckwheat", Count: 4},
	{Name: "Pasta", Count: 6},
	{Name: "Flour", Count: 4},
	{Name: "Sugar", Count: 5},
	{Name: "Salt", Count: 4},
	{Name: "Oil", Count: 5},
	{Name: "Coffee", Count: 6},
	{Name: "Tea", Count: 6},
	{Name: "Cookies", Count: 4},
	{Name: "Chocolate", Count: 5},
	{Name: "Water", Count: 6},
	{Name: "Juice", Count: 4},
	{Name: "Ketchup", Count: 3},
	{Name: "Mayonnaise", Count: 3},
	{Name: "Mustard", Count: 2},
	{Name: "Vinegar", Count: 2},
	{Name: "Soap", Count: 3},
	{Name: "Shampoo", Count: 3},
	{Name: "Toothpaste", Count: 3},
	{Name: "Toilet paper", Count: 5},
	{Name: "Napkins", Count: 3},
	{Name: "Laundry detergent", Count: 3},
	{Name: "Dish soap", Count: 3},
	{Name: "Sponges", Count: 2},
}

var seedNames = func() map[string]struct{} {
	m := make(map[string]struct{}, len(seedVocabulary))
	for _, e := range seedVocabulary {
		m[e.Name] = struct{}{}
	}
	return m
}()

func isSeedName(name string) bool {
	_, ok := seedNames[name]
	return ok
}
