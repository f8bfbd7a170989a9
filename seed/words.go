package seed

var firstNames = []string{
	"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi", "Ivan", "Judy",
	"Mallory", "Niaj", "Olivia", "Peggy", "Rupert", "Sybil", "Trent", "Victor", "Walter", "Zoe",
}

var lastNames = []string{
	"Anderson", "Brown", "Clark", "Davis", "Evans", "Garcia", "Hall", "Johnson", "King", "Lee",
	"Martin", "Nelson", "Owens", "Parker", "Quinn", "Roberts", "Smith", "Turner", "White", "Young",
}

var lorem = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing", "elit", "sed", "do",
	"eiusmod", "tempor", "incididunt", "ut", "labore", "et", "dolore", "magna", "aliqua", "enim",
	"minim", "veniam", "quis", "nostrud", "exercitation", "ullamco", "laboris", "nisi", "aliquip",
	"commodo", "consequat", "duis", "aute", "irure", "reprehenderit", "voluptate", "velit", "esse",
}
