package faq

// reference is the compiled-in corpus served by Default.
var reference = []Entry{
	{
		Question: "What is PCOD/PCOS?",
		Answer:   "PCOD (Polycystic Ovarian Disease) is a hormonal disorder causing enlarged ovaries with small cysts. It affects women's fertility, menstrual cycle, hormones, and physical appearance.",
		Category: "Basic Information",
	},
	{
		Question: "What are the common symptoms of PCOD?",
		Answer:   "Common symptoms include irregular periods, weight gain, acne, excessive hair growth, hair loss, and difficulty conceiving.",
		Category: "Symptoms",
	},
	{
		Question: "How is PCOD diagnosed?",
		Answer:   "PCOD is diagnosed through physical examination, medical history, blood tests to check hormone levels, and ultrasound to examine the ovaries.",
		Category: "Diagnosis",
	},
	{
		Question: "What lifestyle changes can help manage PCOD?",
		Answer:   "Regular exercise, maintaining a healthy diet, stress management, adequate sleep, and weight management can help control PCOD symptoms.",
		Category: "Treatment",
	},
	{
		Question: "Can PCOD affect fertility?",
		Answer:   "Yes, PCOD can affect fertility by interfering with regular ovulation. However, with proper treatment and management, many women with PCOD can conceive.",
		Category: "Fertility",
	},
	{
		Question: "What foods should I avoid with PCOD?",
		Answer:   "Avoid processed foods, refined sugars, white flour products, and excessive caffeine. These can worsen insulin resistance and hormonal imbalances.",
		Category: "Diet",
	},
	{
		Question: "Is PCOD curable?",
		Answer:   "While PCOD cannot be cured completely, its symptoms can be effectively managed through lifestyle changes, medication, and proper medical supervision.",
		Category: "Treatment",
	},
	{
		Question: "How does stress affect PCOD?",
		Answer:   "Stress can worsen PCOD symptoms by affecting hormone levels and insulin resistance. Stress management techniques like yoga and meditation can help.",
		Category: "Lifestyle",
	},
}
