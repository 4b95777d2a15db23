package anidb

import "encoding/xml"

// Title is a localized anime title
type Title struct {
	Text string `xml:",chardata" json:"title"`
	Lang string `xml:"lang,attr" json:"lang"`
	Type string `xml:"type,attr,omitempty" json:"type,omitempty"`
}

// Rating carries either a count (anime ratings) or votes (episode and character ratings)
type Rating struct {
	Value string `xml:",chardata" json:"value"`
	Count int    `xml:"count,attr" json:"count,omitempty"`
	Votes int    `xml:"votes,attr" json:"votes,omitempty"`
}

type Ratings struct {
	Permanent *Rating `xml:"permanent" json:"permanent,omitempty"`
	Temporary *Rating `xml:"temporary" json:"temporary,omitempty"`
	Review    *Rating `xml:"review" json:"review,omitempty"`
}

// AnimeDetail is the response of request=anime
type AnimeDetail struct {
	XMLName         xml.Name         `xml:"anime" json:"-"`
	ID              int              `xml:"id,attr" json:"id"`
	Restricted      bool             `xml:"restricted,attr" json:"restricted"`
	Type            string           `xml:"type" json:"type"`
	EpisodeCount    int              `xml:"episodecount" json:"episodeCount"`
	StartDate       string           `xml:"startdate" json:"startDate"`
	EndDate         string           `xml:"enddate" json:"endDate,omitempty"`
	Titles          []Title          `xml:"titles>title" json:"titles"`
	RelatedAnime    []RelatedAnime   `xml:"relatedanime>anime" json:"relatedAnime,omitempty"`
	SimilarAnime    []SimilarAnime   `xml:"similaranime>anime" json:"similarAnime,omitempty"`
	Recommendations []Recommendation `xml:"recommendations>recommendation" json:"recommendations,omitempty"`
	URL             string           `xml:"url" json:"url,omitempty"`
	Creators        []Creator        `xml:"creators>name" json:"creators,omitempty"`
	Description     string           `xml:"description" json:"description,omitempty"`
	Ratings         Ratings          `xml:"ratings" json:"ratings"`
	Picture         string           `xml:"picture" json:"picture,omitempty"`
	Resources       []Resource       `xml:"resources>resource" json:"resources,omitempty"`
	Tags            []Tag            `xml:"tags>tag" json:"tags,omitempty"`
	Characters      []Character      `xml:"characters>character" json:"characters,omitempty"`
	Episodes        []Episode        `xml:"episodes>episode" json:"episodes,omitempty"`
}

type RelatedAnime struct {
	ID    int    `xml:"id,attr" json:"id"`
	Type  string `xml:"type,attr" json:"type"`
	Title string `xml:",chardata" json:"title"`
}

type SimilarAnime struct {
	ID       int    `xml:"id,attr" json:"id"`
	Approval int    `xml:"approval,attr" json:"approval"`
	Total    int    `xml:"total,attr" json:"total"`
	Title    string `xml:",chardata" json:"title"`
}

type Recommendation struct {
	Type string `xml:"type,attr" json:"type"`
	UID  int    `xml:"uid,attr" json:"uid"`
	Text string `xml:",chardata" json:"text"`
}

type Creator struct {
	ID   int    `xml:"id,attr" json:"id"`
	Type string `xml:"type,attr" json:"type"`
	Name string `xml:",chardata" json:"name"`
}

type Resource struct {
	Type     int              `xml:"type,attr" json:"type"`
	Entities []ExternalEntity `xml:"externalentity" json:"entities"`
}

type ExternalEntity struct {
	Identifiers []string `xml:"identifier" json:"identifiers,omitempty"`
	URLs        []string `xml:"url" json:"urls,omitempty"`
}

type Tag struct {
	ID            int    `xml:"id,attr" json:"id"`
	ParentID      int    `xml:"parentid,attr,omitempty" json:"parentId,omitempty"`
	Weight        int    `xml:"weight,attr" json:"weight"`
	LocalSpoiler  bool   `xml:"localspoiler,attr" json:"localSpoiler"`
	GlobalSpoiler bool   `xml:"globalspoiler,attr" json:"globalSpoiler"`
	Verified      bool   `xml:"verified,attr" json:"verified"`
	Update        string `xml:"update,attr" json:"update"`
	Name          string `xml:"name" json:"name"`
	Description   string `xml:"description" json:"description,omitempty"`
	PicURL        string `xml:"picurl" json:"picUrl,omitempty"`
}

type Character struct {
	ID            int      `xml:"id,attr" json:"id"`
	Type          string   `xml:"type,attr" json:"type"`
	Update        string   `xml:"update,attr" json:"update"`
	Rating        *Rating  `xml:"rating" json:"rating,omitempty"`
	Name          string   `xml:"name" json:"name"`
	Gender        string   `xml:"gender" json:"gender"`
	CharacterType string   `xml:"charactertype" json:"characterType"`
	Description   string   `xml:"description" json:"description,omitempty"`
	Picture       string   `xml:"picture" json:"picture,omitempty"`
	Seiyuu        []Seiyuu `xml:"seiyuu" json:"seiyuu,omitempty"`
}

type Seiyuu struct {
	ID      int    `xml:"id,attr" json:"id"`
	Picture string `xml:"picture,attr" json:"picture,omitempty"`
	Name    string `xml:",chardata" json:"name"`
}

type EpisodeNumber struct {
	Type  int    `xml:"type,attr" json:"type"`
	Value string `xml:",chardata" json:"value"`
}

type Episode struct {
	ID      int           `xml:"id,attr" json:"id"`
	Update  string        `xml:"update,attr" json:"update"`
	Recap   bool          `xml:"recap,attr,omitempty" json:"recap,omitempty"`
	EpNo    EpisodeNumber `xml:"epno" json:"epno"`
	Length  int           `xml:"length" json:"length"`
	AirDate string        `xml:"airdate" json:"airDate,omitempty"`
	Rating  *Rating       `xml:"rating" json:"rating,omitempty"`
	Titles  []Title       `xml:"title" json:"titles"`
	Summary string        `xml:"summary" json:"summary,omitempty"`
}

// AnimeSummary is the short anime form used by the hot and recommendation feeds
type AnimeSummary struct {
	ID           int     `xml:"id,attr" json:"id"`
	Restricted   bool    `xml:"restricted,attr" json:"restricted"`
	Type         string  `xml:"type" json:"type,omitempty"`
	EpisodeCount int     `xml:"episodecount" json:"episodeCount,omitempty"`
	StartDate    string  `xml:"startdate" json:"startDate,omitempty"`
	EndDate      string  `xml:"enddate" json:"endDate,omitempty"`
	Titles       []Title `xml:"title" json:"titles"`
	Ratings      Ratings `xml:"ratings" json:"ratings"`
	Picture      string  `xml:"picture" json:"picture,omitempty"`
}

// HotAnime is the response of request=hotanime
type HotAnime struct {
	XMLName xml.Name       `xml:"hotanime" json:"-"`
	Anime   []AnimeSummary `xml:"anime" json:"anime"`
}

// RandomRecommendation is the response of request=randomrecommendation
type RandomRecommendation struct {
	XMLName xml.Name       `xml:"randomrecommendation" json:"-"`
	Anime   []AnimeSummary `xml:"recommendation>anime" json:"anime"`
}

type SimilarSide struct {
	Aid        int     `xml:"aid,attr" json:"aid"`
	Restricted bool    `xml:"restricted,attr" json:"restricted"`
	Titles     []Title `xml:"title" json:"titles"`
	Picture    string  `xml:"picture" json:"picture,omitempty"`
}

type SimilarPair struct {
	Source SimilarSide `xml:"source" json:"source"`
	Target SimilarSide `xml:"target" json:"target"`
}

// RandomSimilar is the response of request=randomsimilar
type RandomSimilar struct {
	XMLName xml.Name      `xml:"randomsimilar" json:"-"`
	Similar []SimilarPair `xml:"similar" json:"similar"`
}

// Main is the response of request=main, combining the three feeds
type Main struct {
	XMLName              xml.Name       `xml:"main" json:"-"`
	HotAnime             []AnimeSummary `xml:"hotanime>anime" json:"hotAnime"`
	RandomSimilar        []SimilarPair  `xml:"randomsimilar>similar" json:"randomSimilar"`
	RandomRecommendation []AnimeSummary `xml:"randomrecommendation>recommendation>anime" json:"randomRecommendation"`
}

type errorDocument struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}
