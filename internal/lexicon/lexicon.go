// Package lexicon extracts technology and skill terms from posting text using
// a static, exact-match vocabulary.
package lexicon

// Lexicon is the static vocabulary the extractor matches against. Terms are
// matched case-insensitively on whole words; there is no fuzzy matching, so
// the resulting statistics stay stable and comparable across runs.
type Lexicon struct {
	Technologies []string
	Skills       []string
}

// DefaultLexicon returns the built-in vocabulary for the Moroccan tech job
// market: technologies by family, then transferable skills including the
// languages and methodologies that postings routinely list.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Technologies: []string{
			// Languages.
			"Python", "Java", "JavaScript", "TypeScript", "PHP", "C#", "C++",
			"Ruby", "Go", "Rust", "Swift", "Kotlin", "Scala", "R", "Dart",
			"Lua", "Perl", "Bash", "PowerShell",
			// Frontend.
			"React", "Angular", "Vue.js", "Next.js", "Nuxt.js", "Svelte",
			"jQuery", "Bootstrap", "Tailwind", "Material UI", "HTML5", "CSS3",
			"Sass", "Webpack", "Vite",
			// Backend.
			"Node.js", "Django", "Flask", "FastAPI", "Spring Boot", "Laravel",
			"Symfony", "Express.js", "NestJS", "ASP.NET Core", "Ruby on Rails",
			"GraphQL", "REST API", "gRPC",
			// Mobile.
			"React Native", "Flutter", "Android", "iOS", "Xamarin", "Ionic",
			"Expo", "SwiftUI",
			// Data and AI.
			"Machine Learning", "Deep Learning", "Data Science", "Big Data",
			"AI", "NLP", "TensorFlow", "PyTorch", "Keras", "Scikit-learn",
			"Pandas", "NumPy", "Hadoop", "Spark", "Kafka", "Airflow",
			"Snowflake", "Databricks", "Power BI", "Tableau",
			// DevOps and cloud.
			"AWS", "Azure", "Google Cloud", "Docker", "Kubernetes", "Jenkins",
			"GitLab CI", "GitHub Actions", "CircleCI", "Terraform", "Ansible",
			"Prometheus", "Grafana", "ELK Stack", "Linux", "Nginx", "Apache",
			// Databases.
			"MySQL", "PostgreSQL", "MongoDB", "Oracle", "SQL Server", "Redis",
			"Elasticsearch", "Cassandra", "DynamoDB", "MariaDB", "SQLite",
			"Firebase", "Supabase",
			// Platforms and practices.
			"Cybersecurity", "Blockchain", "IoT", "Salesforce", "SAP", "Odoo",
			"WordPress", "Shopify", "Jira", "Confluence", "Agile", "Scrum",
		},
		Skills: []string{
			// Soft skills, in the French wording used by local boards.
			"Communication", "Leadership", "Travail équipe", "Autonomie",
			"Rigueur", "Dynamisme", "Créativité", "Organisation",
			"Gestion temps", "Adaptabilité", "Problem solving",
			// Languages.
			"Anglais", "Français", "Arabe", "Espagnol", "Allemand",
			// Methodologies.
			"Agile", "Scrum", "Kanban", "Management", "Gestion projet", "Analyse",
			// Functional domains.
			"Comptabilité", "Marketing", "Commercial", "Vente", "Négociation",
			"Service client", "RH", "Finance", "Logistique", "Maintenance",
			"Qualité", "HSE", "BTP",
		},
	}
}
