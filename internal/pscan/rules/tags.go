package rules

type alertTag struct {
	name string
	link string
}

var (
	tagOWASP2021A05 = alertTag{
		name: "OWASP_2021_A05",
		link: "https://owasp.org/Top10/A05_2021-Security_Misconfiguration/",
	}
	tagOWASP2017A06 = alertTag{
		name: "OWASP_2017_A06",
		link: "https://owasp.org/www-project-top-ten/2017/A6_2017-Security_Misconfiguration.html",
	}
)

func alertTags(tags ...alertTag) map[string]string {
	res := make(map[string]string, len(tags))
	for _, t := range tags {
		res[t.name] = t.link
	}
	return res
}
